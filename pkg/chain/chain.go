// Package chain is a small in-process execution environment for native
// contracts: it keeps account balances, nonces and code, executes
// transactions one at a time and records a receipt for each of them.
// It stands in for a development node; there is no gas, no mempool and
// every transaction is mined in its own block.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/zama-ai/faucet-contract/pkg/logger"
)

var (
	ErrNoCode            = errors.New("no contract code at address")
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrContractExists    = errors.New("contract already deployed at address")
	ErrReceiptNotFound   = errors.New("receipt not found")
)

// Contract is native code hosted by the chain at a single address.
type Contract interface {
	// Code is what CodeAt reports while the contract is alive. It must not be empty.
	Code() []byte
	// Run executes input on behalf of caller. value has already been credited
	// to the contract when Run is called. Returning an error reverts every
	// state change made by the transaction.
	Run(host Host, caller common.Address, value *uint256.Int, input []byte) ([]byte, error)
}

// Constructor builds a contract for the account that deploys it.
type Constructor func(creator common.Address) (Contract, error)

// Host is the view of the chain a running contract gets.
type Host interface {
	Self() common.Address
	BalanceOf(addr common.Address) *uint256.Int
	// Transfer moves amount from the running contract to another account.
	Transfer(to common.Address, amount *uint256.Int) error
	// SelfDestruct sends the whole contract balance to beneficiary and
	// removes the contract code once the transaction succeeds.
	SelfDestruct(beneficiary common.Address) error
}

// Chain holds the world state in a go-ethereum StateDB backed by an in-memory
// database. All methods are safe for concurrent use; transactions are serialized.
type Chain struct {
	mu        sync.Mutex
	state     *state.StateDB
	contracts map[common.Address]Contract
	receipts  map[common.Hash]*Receipt
	block     uint64
	// destructed lists contracts that self-destructed in the running transaction.
	destructed []common.Address
}

func New() *Chain {
	db := state.NewDatabase(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil), nil)
	sdb, err := state.New(types.EmptyRootHash, db)
	if err != nil {
		// An empty root over a fresh memory database always opens.
		panic(fmt.Errorf("failed to open state: %w", err))
	}
	return &Chain{
		state:     sdb,
		contracts: make(map[common.Address]Contract),
		receipts:  make(map[common.Hash]*Receipt),
	}
}

// Fund credits addr out of thin air, like a genesis allocation.
func (c *Chain) Fund(addr common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, overflow := new(uint256.Int).AddOverflow(c.state.GetBalance(addr), amount); overflow {
		return fmt.Errorf("failed to fund %s: %w", addr.Hex(), ErrBalanceOverflow)
	}
	c.state.AddBalance(addr, amount, tracing.BalanceIncreaseGenesisBalance)
	c.state.Finalise(true)
	logger.Debugf("funded %s with %s wei", addr.Hex(), amount.Dec())
	return nil
}

func (c *Chain) BalanceAt(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceOf(addr), nil
}

// CodeAt returns the code of the contract at addr, or nil when there is none.
func (c *Chain) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contractAt(addr) == nil {
		return nil, nil
	}
	return common.CopyBytes(c.state.GetCode(addr)), nil
}

func (c *Chain) NonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.GetNonce(addr), nil
}

func (c *Chain) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

func (c *Chain) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, hash.Hex())
	}
	return r, nil
}

func (c *Chain) balanceOf(addr common.Address) *uint256.Int {
	return c.state.GetBalance(addr).Clone()
}

// contractAt returns the contract hosted at addr while its code is deployed.
func (c *Chain) contractAt(addr common.Address) Contract {
	if c.state.GetCodeSize(addr) == 0 {
		return nil
	}
	return c.contracts[addr]
}

func (c *Chain) transfer(from, to common.Address, amount *uint256.Int) error {
	if bal := c.state.GetBalance(from); bal.Lt(amount) {
		return fmt.Errorf("%w: %s has %s wei, needs %s", ErrInsufficientFunds, from.Hex(), bal.Dec(), amount.Dec())
	}
	if from == to || amount.IsZero() {
		return nil
	}
	if _, overflow := new(uint256.Int).AddOverflow(c.state.GetBalance(to), amount); overflow {
		return fmt.Errorf("failed to credit %s: %w", to.Hex(), ErrBalanceOverflow)
	}
	c.state.SubBalance(from, amount, tracing.BalanceChangeTransfer)
	c.state.AddBalance(to, amount, tracing.BalanceChangeTransfer)
	return nil
}
