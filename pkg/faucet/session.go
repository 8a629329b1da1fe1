package faucet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// Session binds a deployed faucet to the chain hosting it and submits
// ABI encoded transactions on behalf of callers.
type Session struct {
	chain   *chain.Chain
	address common.Address
	limit   *uint256.Int
}

// Deploy creates a faucet owned by creator and funded with funding.
func Deploy(ctx context.Context, c *chain.Chain, creator common.Address, funding *uint256.Int, opts ...Option) (*Session, *chain.Receipt, error) {
	var deployed *Faucet
	ctor := func(owner common.Address) (chain.Contract, error) {
		deployed = New(owner, opts...)
		return deployed, nil
	}

	addr, receipt, err := c.Deploy(ctx, creator, funding, ctor)
	if err != nil {
		return nil, receipt, fmt.Errorf("failed to deploy faucet: %w", err)
	}
	logger.Infof("faucet deployed at %s, owner %s, limit %s wei", addr.Hex(), creator.Hex(), deployed.limit.Dec())

	return &Session{
		chain:   c,
		address: addr,
		limit:   deployed.Limit(),
	}, receipt, nil
}

func (s *Session) Address() common.Address {
	return s.address
}

// Limit is the per-call withdrawal cap the faucet was deployed with.
func (s *Session) Limit() *uint256.Int {
	return s.limit.Clone()
}

func (s *Session) Owner(ctx context.Context) (common.Address, error) {
	input, err := ABI.Pack(MethodOwner)
	if err != nil {
		return common.Address{}, err
	}
	out, err := s.chain.Call(ctx, common.Address{}, s.address, input)
	if err != nil {
		return common.Address{}, s.wrap(err)
	}
	values, err := ABI.Unpack(MethodOwner, out)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack owner: %w", err)
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("owner returned %T", values[0])
	}
	return owner, nil
}

func (s *Session) Balance(ctx context.Context) (*uint256.Int, error) {
	return s.chain.BalanceAt(ctx, s.address)
}

// Alive reports whether the faucet code is still present.
func (s *Session) Alive(ctx context.Context) (bool, error) {
	code, err := s.chain.CodeAt(ctx, s.address)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

func (s *Session) Withdraw(ctx context.Context, from common.Address, amount *uint256.Int) (*chain.Receipt, error) {
	return s.transact(ctx, from, nil, MethodWithdraw, amount.ToBig())
}

func (s *Session) WithdrawAll(ctx context.Context, from common.Address) (*chain.Receipt, error) {
	return s.transact(ctx, from, nil, MethodWithdrawAll)
}

func (s *Session) Destroy(ctx context.Context, from common.Address) (*chain.Receipt, error) {
	return s.transact(ctx, from, nil, MethodDestroy)
}

// Deposit tops the faucet up with a plain value transfer.
func (s *Session) Deposit(ctx context.Context, from common.Address, amount *uint256.Int) (*chain.Receipt, error) {
	alive, err := s.Alive(ctx)
	if err != nil {
		return nil, err
	}
	if !alive {
		return nil, fmt.Errorf("failed to deposit: %w", ErrDestroyed)
	}
	receipt, err := s.chain.SendTransaction(ctx, from, s.address, amount, nil)
	if err != nil {
		return receipt, s.wrap(err)
	}
	return receipt, nil
}

func (s *Session) transact(ctx context.Context, from common.Address, value *uint256.Int, method string, args ...interface{}) (*chain.Receipt, error) {
	input, err := ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	receipt, err := s.chain.SendTransaction(ctx, from, s.address, value, input)
	if err != nil {
		logger.Debugf("faucet %s from %s reverted: %v", method, from.Hex(), err)
		return receipt, s.wrap(err)
	}
	logger.Debugf("faucet %s from %s mined in block %d", method, from.Hex(), receipt.BlockNumber)
	return receipt, nil
}

// wrap reports calls against a removed faucet as ErrDestroyed.
func (s *Session) wrap(err error) error {
	if errors.Is(err, chain.ErrNoCode) {
		return fmt.Errorf("%w: %w", ErrDestroyed, err)
	}
	return err
}
