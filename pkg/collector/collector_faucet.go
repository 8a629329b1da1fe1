package collector

import (
	"context"
	"sync"
	"time"

	"github.com/carlmjohnson/flowmatic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// FaucetReader is satisfied by *faucet.Session and *contract.Client.
type FaucetReader interface {
	Address() common.Address
	Balance(ctx context.Context) (*uint256.Int, error)
	Alive(ctx context.Context) (bool, error)
}

type Target struct {
	Name   string
	Module Module
	Reader FaucetReader
}

type faucetResult struct {
	target  Target
	balance float64
	alive   bool
	health  float64
}

// FaucetCollector exports balance and liveness of faucet contracts
type FaucetCollector struct {
	targets      []Target
	unit         *currency.Unit
	timeout      time.Duration
	balance      *prometheus.GaugeVec
	alive        *prometheus.GaugeVec
	health       *prometheus.GaugeVec
	collectMutex sync.Mutex
}

func NewFaucetCollector(unit *currency.Unit, targets []Target) *FaucetCollector {
	labels := []string{"faucet", "module", "address"}
	return &FaucetCollector{
		targets: targets,
		unit:    unit,
		timeout: 10 * time.Second,
		balance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "faucet_balance",
				Help:        "Balance held by the faucet contract",
				ConstLabels: prometheus.Labels{"unit": unit.Symbol},
			},
			labels,
		),
		alive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faucet_alive",
				Help: "1 while the faucet code is deployed, 0 once destroyed",
			},
			labels,
		),
		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faucet_health",
				Help: "Whether the last read of the faucet succeeded",
			},
			labels,
		),
	}
}

func (c *FaucetCollector) read(ctx context.Context, target Target) faucetResult {
	result := faucetResult{target: target}

	alive, err := target.Reader.Alive(ctx)
	if err != nil {
		logger.Errorf("error reading code of faucet %s: %v", target.Name, err)
		return result
	}
	balance, err := target.Reader.Balance(ctx)
	if err != nil {
		logger.Errorf("error reading balance of faucet %s: %v", target.Name, err)
		return result
	}

	result.alive = alive
	result.balance = currency.Float64(balance, c.unit)
	result.health = 1
	return result
}

func (c *FaucetCollector) collectMetrics() []faucetResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	results := make([]faucetResult, len(c.targets))
	err := flowmatic.Each(DefaultMaxConcurrency, indexes(len(c.targets)), func(i int) error {
		results[i] = c.read(ctx, c.targets[i])
		return nil
	})
	if err != nil {
		logger.Errorf("error in faucet collection: %v", err)
	}
	return results
}

func (c *FaucetCollector) Describe(ch chan<- *prometheus.Desc) {
	c.balance.Describe(ch)
	c.alive.Describe(ch)
	c.health.Describe(ch)
}

func (c *FaucetCollector) Collect(ch chan<- prometheus.Metric) {
	c.collectMutex.Lock()
	defer c.collectMutex.Unlock()

	c.balance.Reset()
	c.alive.Reset()
	c.health.Reset()
	for _, r := range c.collectMetrics() {
		labels := prometheus.Labels{
			"faucet":  r.target.Name,
			"module":  string(r.target.Module),
			"address": r.target.Reader.Address().Hex(),
		}
		c.health.With(labels).Set(r.health)
		if r.health == 0 {
			continue
		}
		c.balance.With(labels).Set(r.balance)
		if r.alive {
			c.alive.With(labels).Set(1)
		} else {
			c.alive.With(labels).Set(0)
		}
	}
	c.balance.Collect(ch)
	c.alive.Collect(ch)
	c.health.Collect(ch)
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
