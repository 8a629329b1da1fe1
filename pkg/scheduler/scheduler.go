package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/robfig/cron/v3"

	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// ScheduleParser accepts standard five field expressions, an optional leading
// seconds field, and descriptors such as "@every 30m".
var ScheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Depositor is the part of *faucet.Session the scheduler drives
type Depositor interface {
	Balance(ctx context.Context) (*uint256.Int, error)
	Alive(ctx context.Context) (bool, error)
	Deposit(ctx context.Context, from common.Address, amount *uint256.Int) (*chain.Receipt, error)
}

const (
	StatusRefilled  = "refilled"
	StatusSkipped   = "skipped"
	StatusDestroyed = "destroyed"
	StatusFailed    = "failed"
)

// RefillEvent describes one refill check, for logging and the API
type RefillEvent struct {
	Status    string
	Balance   *uint256.Int
	Threshold *uint256.Int
	Target    *uint256.Int
	Amount    *uint256.Int
	TxHash    common.Hash
	Error     error
	Timestamp time.Time
	Duration  time.Duration
}

// RefillScheduler tops the faucet up from a treasury account whenever its
// balance drops below the configured threshold
type RefillScheduler struct {
	faucet    Depositor
	treasury  common.Address
	threshold *uint256.Int
	target    *uint256.Int
	schedule  string
	timeout   time.Duration
	unit      *currency.Unit
	cron      *cron.Cron

	running   bool
	lastEvent *RefillEvent
	mutex     sync.RWMutex
	runMutex  sync.Mutex
	entry     cron.EntryID
	// cancel aborts checks started by the current run of the scheduler.
	cancel context.CancelFunc
}

func NewRefillScheduler(cfg *config.Schema, f Depositor) (*RefillScheduler, error) {
	if !cfg.Faucet.IsRefillEnabled() {
		return nil, fmt.Errorf("refill is not enabled in configuration")
	}
	refill := cfg.Faucet.Refill

	treasury, ok := cfg.Account(refill.Treasury)
	if !ok {
		return nil, fmt.Errorf("unknown treasury account %q", refill.Treasury)
	}
	threshold, err := cfg.Faucet.Amount(refill.Threshold)
	if err != nil {
		return nil, fmt.Errorf("invalid refill threshold: %w", err)
	}
	target, err := cfg.Faucet.Amount(refill.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid refill target: %w", err)
	}
	if !target.Gt(threshold) {
		return nil, fmt.Errorf("refill target %s must be greater than threshold %s", refill.Target, refill.Threshold)
	}

	cronLogger := cron.PrintfLogger(logger.GetLogger())
	return &RefillScheduler{
		faucet:    f,
		treasury:  common.HexToAddress(treasury.Address),
		threshold: threshold,
		target:    target,
		schedule:  refill.Schedule,
		timeout:   time.Duration(refill.Timeout) * time.Second,
		unit:      cfg.Faucet.Unit,
		cron: cron.New(
			cron.WithParser(ScheduleParser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		),
	}, nil
}

func (rs *RefillScheduler) Start() error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	if rs.running {
		return fmt.Errorf("scheduler is already running")
	}

	logger.Infof("Starting refill scheduler with schedule: %s", rs.schedule)
	ctx, cancel := context.WithCancel(context.Background())
	entry, err := rs.cron.AddFunc(rs.schedule, func() {
		rs.RunOnce(ctx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	rs.cron.Start()
	rs.entry = entry
	rs.cancel = cancel
	rs.running = true
	return nil
}

// Stop waits for a running check to finish; it is safe to call twice.
// A stopped scheduler can be started again.
func (rs *RefillScheduler) Stop() error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	if !rs.running {
		return nil
	}

	logger.Infof("Stopping refill scheduler...")
	stopped := rs.cron.Stop()
	rs.cancel()
	<-stopped.Done()
	rs.cron.Remove(rs.entry)

	rs.running = false
	logger.Infof("Refill scheduler stopped")
	return nil
}

func (rs *RefillScheduler) IsRunning() bool {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return rs.running
}

// GetNextRun returns the next scheduled run time, zero when stopped
func (rs *RefillScheduler) GetNextRun() time.Time {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	if !rs.running {
		return time.Time{}
	}
	entries := rs.cron.Entries()
	if len(entries) > 0 {
		return entries[0].Next
	}
	return time.Time{}
}

// LastEvent returns the outcome of the most recent check, if any
func (rs *RefillScheduler) LastEvent() *RefillEvent {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return rs.lastEvent
}

// RunOnce performs a single refill check. Checks never overlap.
func (rs *RefillScheduler) RunOnce(ctx context.Context) *RefillEvent {
	rs.runMutex.Lock()
	defer rs.runMutex.Unlock()

	event := rs.check(ctx)

	rs.mutex.Lock()
	rs.lastEvent = event
	rs.mutex.Unlock()
	return event
}

func (rs *RefillScheduler) check(ctx context.Context) *RefillEvent {
	if rs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.timeout)
		defer cancel()
	}

	startTime := time.Now()
	event := &RefillEvent{
		Threshold: rs.threshold.Clone(),
		Target:    rs.target.Clone(),
		Timestamp: startTime,
	}
	finish := func(status string, err error) *RefillEvent {
		event.Status = status
		event.Error = err
		event.Duration = time.Since(startTime)
		return event
	}

	alive, err := rs.faucet.Alive(ctx)
	if err != nil {
		logger.Errorf("Failed to read faucet code: %v", err)
		return finish(StatusFailed, err)
	}
	if !alive {
		logger.Warnf("Faucet is destroyed, nothing to refill")
		return finish(StatusDestroyed, faucet.ErrDestroyed)
	}

	balance, err := rs.faucet.Balance(ctx)
	if err != nil {
		logger.Errorf("Failed to get faucet balance: %v", err)
		return finish(StatusFailed, err)
	}
	event.Balance = balance

	if !balance.Lt(rs.threshold) {
		logger.Debugf("Faucet balance %s %s is above threshold %s %s, no refill needed",
			currency.FormatAmount(balance, rs.unit), rs.unit.Symbol, currency.FormatAmount(rs.threshold, rs.unit), rs.unit.Symbol)
		return finish(StatusSkipped, nil)
	}

	amount := new(uint256.Int).Sub(rs.target, balance)
	event.Amount = amount

	receipt, err := rs.faucet.Deposit(ctx, rs.treasury, amount)
	if receipt != nil {
		event.TxHash = receipt.TxHash
	}
	if err != nil {
		if errors.Is(err, faucet.ErrDestroyed) {
			return finish(StatusDestroyed, err)
		}
		logger.Errorf("Failed to refill faucet with %s %s from %s: %v",
			currency.FormatAmount(amount, rs.unit), rs.unit.Symbol, rs.treasury.Hex(), err)
		return finish(StatusFailed, err)
	}

	logger.Infof("Refilled faucet with %s %s from %s to reach %s %s, tx: %s",
		currency.FormatAmount(amount, rs.unit), rs.unit.Symbol, rs.treasury.Hex(),
		currency.FormatAmount(rs.target, rs.unit), rs.unit.Symbol, receipt.TxHash.Hex())
	return finish(StatusRefilled, nil)
}
