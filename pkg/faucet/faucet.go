// Package faucet implements an owner-controlled faucet contract: anyone may
// withdraw up to a fixed amount per call, only the owner may drain it or
// destroy it.
package faucet

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/zama-ai/faucet-contract/pkg/chain"
)

var (
	ErrLimitExceeded       = errors.New("withdrawal amount exceeds limit")
	ErrUnauthorized        = errors.New("caller is not the owner")
	ErrDestroyed           = errors.New("faucet destroyed")
	ErrInsufficientBalance = errors.New("faucet balance too low")
	ErrUnknownMethod       = errors.New("unknown method")
	ErrNonPayable          = errors.New("method is not payable")
)

// DefaultLimit is the per-call withdrawal cap, 0.1 ether.
var DefaultLimit = uint256.NewInt(params.Ether / 10)

// Faucet is the contract state. Owner and limit never change after creation;
// the balance is the environment balance of the faucet address.
type Faucet struct {
	owner common.Address
	limit *uint256.Int
}

type Option func(*Faucet)

// WithLimit overrides the per-call withdrawal cap.
func WithLimit(limit *uint256.Int) Option {
	return func(f *Faucet) {
		if limit != nil {
			f.limit = limit.Clone()
		}
	}
}

func New(owner common.Address, opts ...Option) *Faucet {
	f := &Faucet{
		owner: owner,
		limit: DefaultLimit.Clone(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Constructor returns a chain.Constructor making the deployer the owner.
func Constructor(opts ...Option) chain.Constructor {
	return func(creator common.Address) (chain.Contract, error) {
		return New(creator, opts...), nil
	}
}

func (f *Faucet) Owner() common.Address {
	return f.owner
}

func (f *Faucet) Limit() *uint256.Int {
	return f.limit.Clone()
}

func (f *Faucet) Code() []byte {
	return runtimeCode
}

// Withdraw sends amount to caller. Anyone may call it.
func (f *Faucet) Withdraw(host chain.Host, caller common.Address, amount *uint256.Int) error {
	if amount.Gt(f.limit) {
		return fmt.Errorf("%w: requested %s wei, limit is %s wei", ErrLimitExceeded, amount.Dec(), f.limit.Dec())
	}
	if bal := host.BalanceOf(host.Self()); bal.Lt(amount) {
		return fmt.Errorf("%w: holds %s wei, requested %s wei", ErrInsufficientBalance, bal.Dec(), amount.Dec())
	}
	return host.Transfer(caller, amount)
}

// WithdrawAll sends the whole balance to the owner.
func (f *Faucet) WithdrawAll(host chain.Host, caller common.Address) error {
	if err := f.onlyOwner(caller); err != nil {
		return err
	}
	return host.Transfer(f.owner, host.BalanceOf(host.Self()))
}

// Destroy sweeps the balance to the owner and removes the faucet.
func (f *Faucet) Destroy(host chain.Host, caller common.Address) error {
	if err := f.onlyOwner(caller); err != nil {
		return err
	}
	return host.SelfDestruct(f.owner)
}

func (f *Faucet) onlyOwner(caller common.Address) error {
	if caller != f.owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// Run dispatches ABI encoded calls. Empty input is a plain deposit.
func (f *Faucet) Run(host chain.Host, caller common.Address, value *uint256.Int, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}
	if len(input) < 4 {
		return nil, fmt.Errorf("%w: short call data %x", ErrUnknownMethod, input)
	}
	method, err := ABI.MethodById(input[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMethod, err)
	}
	if !method.IsPayable() && !value.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrNonPayable, method.Name)
	}

	switch method.Name {
	case MethodOwner:
		return method.Outputs.Pack(f.owner)
	case MethodWithdraw:
		amount, err := unpackAmount(method, input[4:])
		if err != nil {
			return nil, err
		}
		return nil, f.Withdraw(host, caller, amount)
	case MethodWithdrawAll:
		return nil, f.WithdrawAll(host, caller)
	case MethodDestroy:
		return nil, f.Destroy(host, caller)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method.Name)
	}
}

func unpackAmount(method *abi.Method, data []byte) (*uint256.Int, error) {
	args, err := method.Inputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s arguments: %w", method.Name, err)
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("%s expects 1 argument, got %d", method.Name, len(args))
	}
	raw, ok := args[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s argument has type %T", method.Name, args[0])
	}
	amount, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, fmt.Errorf("%s amount overflows uint256", method.Name)
	}
	return amount, nil
}
