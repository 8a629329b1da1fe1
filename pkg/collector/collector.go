package collector

import (
	"context"
	"time"

	"github.com/carlmjohnson/flowmatic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

const (
	DefaultMaxConcurrency = 10
	defaultTimeout        = 10 * time.Second
)

// Module tells metrics read from the in-process chain from those read over RPC.
type Module string

const (
	Local  Module = "local"
	Remote Module = "remote"
)

// AccountReader reads the balance of one configured account, in the exported unit.
type AccountReader interface {
	ReadBalance(ctx context.Context, account *config.Account) (float64, error)
}

type AccountResult struct {
	Account *config.Account
	Balance float64
	Err     error
}

func (r AccountResult) health() float64 {
	if r.Err != nil {
		return 0
	}
	return 1
}

// AccountCollector exports the balances of the configured accounts. Every
// scrape reads them again, so no state survives between scrapes.
type AccountCollector struct {
	accounts    []*config.Account
	reader      AccountReader
	timeout     time.Duration
	balanceDesc *prometheus.Desc
	healthDesc  *prometheus.Desc
}

type CollectorOption func(*AccountCollector)

// WithCollectorTimeout bounds a whole scrape.
func WithCollectorTimeout(timeout time.Duration) CollectorOption {
	return func(c *AccountCollector) {
		c.timeout = timeout
	}
}

func NewAccountCollector(source string, module Module, unit *currency.Unit, accounts []*config.Account, reader AccountReader, opts ...CollectorOption) *AccountCollector {
	variable := []string{"address", "account_name"}
	c := &AccountCollector{
		accounts: accounts,
		reader:   reader,
		timeout:  defaultTimeout,
		balanceDesc: prometheus.NewDesc(
			"faucet_account_balance",
			"Balance of configured accounts",
			variable,
			prometheus.Labels{"source": source, "module": string(module), "unit": unit.Symbol},
		),
		healthDesc: prometheus.NewDesc(
			"faucet_account_health",
			"Whether the last balance read of an account succeeded",
			variable,
			prometheus.Labels{"source": source, "module": string(module)},
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// read queries every account concurrently. Results keep the configured order.
func (c *AccountCollector) read() []AccountResult {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	results := make([]AccountResult, len(c.accounts))
	indexes := make([]int, len(c.accounts))
	for i := range indexes {
		indexes[i] = i
	}
	_ = flowmatic.Each(DefaultMaxConcurrency, indexes, func(i int) error {
		account := c.accounts[i]
		balance, err := c.reader.ReadBalance(ctx, account)
		if err != nil {
			logger.Errorf("failed to read balance of account %s (%s): %v", account.Name, account.Address, err)
		}
		results[i] = AccountResult{Account: account, Balance: balance, Err: err}
		return nil
	})
	return results
}

func (c *AccountCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.balanceDesc
	ch <- c.healthDesc
}

func (c *AccountCollector) Collect(ch chan<- prometheus.Metric) {
	for _, r := range c.read() {
		ch <- prometheus.MustNewConstMetric(c.healthDesc, prometheus.GaugeValue, r.health(), r.Account.Address, r.Account.Name)
		if r.Err == nil {
			ch <- prometheus.MustNewConstMetric(c.balanceDesc, prometheus.GaugeValue, r.Balance, r.Account.Address, r.Account.Name)
		}
	}
}
