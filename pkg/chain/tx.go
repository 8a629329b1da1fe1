package chain

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash          common.Hash     `json:"transactionHash"`
	BlockNumber     uint64          `json:"blockNumber"`
	From            common.Address  `json:"from"`
	To              *common.Address `json:"to,omitempty"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Nonce           uint64          `json:"nonce"`
	Value           *uint256.Int    `json:"value"`
	Status          uint64          `json:"status"`
	Output          []byte          `json:"output,omitempty"`
	RevertReason    string          `json:"revertReason,omitempty"`
	// Err is the contract failure behind a reverted transaction.
	Err error `json:"-"`
}

func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// RevertError is returned for mined transactions whose execution failed.
// It unwraps to the contract error, so callers can match sentinel errors.
type RevertError struct {
	Receipt *Receipt
	Err     error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: %v", e.Err)
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// Deploy creates the contract built by ctor at the address derived from the
// deployer and its nonce, and endows it with value.
func (c *Chain) Deploy(ctx context.Context, from common.Address, value *uint256.Int, ctor Constructor) (common.Address, *Receipt, error) {
	if err := ctx.Err(); err != nil {
		return common.Address{}, nil, err
	}
	value = orZero(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFunds(from, value); err != nil {
		return common.Address{}, nil, err
	}
	nonce := c.bumpNonce(from)
	addr := crypto.CreateAddress(from, nonce)

	receipt := c.newReceipt(from, nil, nonce, value, nil)
	receipt.ContractAddress = &addr

	var contract Contract
	err := c.execute(func() error {
		if c.state.GetCodeSize(addr) > 0 {
			return ErrContractExists
		}
		var err error
		if contract, err = ctor(from); err != nil {
			return err
		}
		code := contract.Code()
		if len(code) == 0 {
			return fmt.Errorf("contract at %s has empty code", addr.Hex())
		}
		if !c.state.Exist(addr) {
			c.state.CreateAccount(addr)
		}
		c.state.CreateContract(addr)
		c.state.SetCode(addr, code)
		return c.transfer(from, addr, value)
	})
	if err == nil {
		c.contracts[addr] = contract
	}
	c.mine(ctx, receipt, nil, err)
	if err != nil {
		return common.Address{}, receipt, &RevertError{Receipt: receipt, Err: err}
	}
	logger.Infof("deployed contract at %s from %s with %s wei", addr.Hex(), from.Hex(), value.Dec())
	return addr, receipt, nil
}

// SendTransaction executes a value transfer and/or contract call from the
// given account and mines it. A transaction the sender cannot pay for is
// rejected without a receipt. A failing contract call is mined with a failed
// receipt and reported as *RevertError.
func (c *Chain) SendTransaction(ctx context.Context, from, to common.Address, value *uint256.Int, data []byte) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value = orZero(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFunds(from, value); err != nil {
		return nil, err
	}
	nonce := c.bumpNonce(from)

	receipt := c.newReceipt(from, &to, nonce, value, data)
	var output []byte
	err := c.execute(func() error {
		if err := c.transfer(from, to, value); err != nil {
			return err
		}
		contract := c.contractAt(to)
		if contract == nil {
			if len(data) > 0 {
				return fmt.Errorf("%w: %s", ErrNoCode, to.Hex())
			}
			return nil
		}
		var err error
		output, err = c.run(to, contract, from, value, data)
		return err
	})
	c.mine(ctx, receipt, output, err)
	if err != nil {
		return receipt, &RevertError{Receipt: receipt, Err: err}
	}
	return receipt, nil
}

// Call executes data against the contract at to without mining anything.
// Every state change is discarded.
func (c *Chain) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.state.Snapshot()
	defer func() {
		c.state.RevertToSnapshot(id)
		c.destructed = nil
	}()

	contract := c.contractAt(to)
	if contract == nil {
		if len(data) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoCode, to.Hex())
		}
		return nil, nil
	}
	return c.run(to, contract, from, new(uint256.Int), data)
}

func (c *Chain) run(self common.Address, contract Contract, caller common.Address, value *uint256.Int, data []byte) ([]byte, error) {
	h := &host{chain: c, self: self}
	return contract.Run(h, caller, value.Clone(), common.CopyBytes(data))
}

// execute runs fn as one atomic unit: on error the state reverts to the
// snapshot taken before fn. The state is finalised either way, which drops
// self-destructed accounts and their code.
func (c *Chain) execute(fn func() error) error {
	id := c.state.Snapshot()
	err := fn()
	if err != nil {
		c.state.RevertToSnapshot(id)
	} else {
		for _, addr := range c.destructed {
			delete(c.contracts, addr)
		}
	}
	c.destructed = nil
	c.state.Finalise(true)
	return err
}

// bumpNonce consumes the next nonce of from. It survives a reverted execution.
func (c *Chain) bumpNonce(from common.Address) uint64 {
	nonce := c.state.GetNonce(from)
	c.state.SetNonce(from, nonce+1)
	return nonce
}

func (c *Chain) checkFunds(from common.Address, value *uint256.Int) error {
	if bal := c.balanceOf(from); bal.Lt(value) {
		return fmt.Errorf("%w: %s has %s wei, needs %s", ErrInsufficientFunds, from.Hex(), bal.Dec(), value.Dec())
	}
	return nil
}

func (c *Chain) newReceipt(from common.Address, to *common.Address, nonce uint64, value *uint256.Int, data []byte) *Receipt {
	var recipient []byte
	if to != nil {
		recipient = to.Bytes()
	}
	valueBytes := value.Bytes32()
	hash := crypto.Keccak256Hash(
		from.Bytes(),
		binary.BigEndian.AppendUint64(nil, nonce),
		recipient,
		valueBytes[:],
		data,
	)
	return &Receipt{
		TxHash: hash,
		From:   from,
		To:     to,
		Nonce:  nonce,
		Value:  value.Clone(),
	}
}

func (c *Chain) mine(ctx context.Context, r *Receipt, output []byte, err error) {
	c.block++
	r.BlockNumber = c.block
	r.Output = output
	if err != nil {
		r.Status = types.ReceiptStatusFailed
		r.Err = err
		r.RevertReason = err.Error()
		r.ContractAddress = nil
	} else {
		r.Status = types.ReceiptStatusSuccessful
	}
	c.receipts[r.TxHash] = r
	logger.DebugContext(ctx, "transaction mined",
		"hash", r.TxHash.Hex(), "block", r.BlockNumber, "from", r.From.Hex(), "status", r.Status)
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

type host struct {
	chain      *Chain
	self       common.Address
	destructed bool
}

func (h *host) Self() common.Address {
	return h.self
}

func (h *host) BalanceOf(addr common.Address) *uint256.Int {
	return h.chain.balanceOf(addr)
}

func (h *host) Transfer(to common.Address, amount *uint256.Int) error {
	if h.destructed {
		return fmt.Errorf("%w: %s self-destructed", ErrNoCode, h.self.Hex())
	}
	return h.chain.transfer(h.self, to, orZero(amount))
}

func (h *host) SelfDestruct(beneficiary common.Address) error {
	if h.destructed {
		return nil
	}
	if err := h.chain.transfer(h.self, beneficiary, h.chain.balanceOf(h.self)); err != nil {
		return err
	}
	// Clears whatever balance is left, the contract's own when beneficiary is self.
	h.chain.state.SelfDestruct(h.self)
	h.chain.destructed = append(h.chain.destructed, h.self)
	h.destructed = true
	return nil
}
