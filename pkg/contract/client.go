// Package contract binds faucet contracts deployed on external EVM nodes.
package contract

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// ErrReverted is returned by WaitMined when the mined transaction failed.
var ErrReverted = errors.New("transaction reverted")

// Client encapsulates interactions with a deployed faucet contract.
type Client struct {
	name     string
	address  common.Address
	rpc      *rpc.Client
	eth      *ethclient.Client
	contract *bind.BoundContract
}

// NewClient dials the node of the provided remote configuration.
func NewClient(ctx context.Context, remote *config.Remote) (*Client, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote configuration cannot be nil")
	}
	if remote.HttpAddr == "" {
		return nil, fmt.Errorf("remote %s is missing httpAddr", remote.Name)
	}
	if remote.ContractAddress == "" {
		return nil, fmt.Errorf("remote %s is missing contractAddress", remote.Name)
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: remote.SkipTLSVerify()}
	httpClient := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   10 * time.Second,
	}

	opts := []rpc.ClientOption{rpc.WithHTTPClient(httpClient)}
	if remote.Authorization != nil && remote.Authorization.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(remote.Authorization.Username + ":" + remote.Authorization.Password))
		opts = append(opts, rpc.WithHTTPAuth(func(h http.Header) error {
			h.Set("Authorization", fmt.Sprintf("Basic %s", creds))
			return nil
		}))
	}

	rpcClient, err := rpc.DialOptions(ctx, remote.HttpAddr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rpc endpoint for remote %s: %w", remote.Name, err)
	}

	ethClient := ethclient.NewClient(rpcClient)
	address := common.HexToAddress(remote.ContractAddress)
	contract := bind.NewBoundContract(address, faucet.ABI, ethClient, ethClient, ethClient)

	return &Client{
		name:     remote.Name,
		address:  address,
		rpc:      rpcClient,
		eth:      ethClient,
		contract: contract,
	}, nil
}

// Close releases the underlying RPC resources.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.eth != nil {
		c.eth.Close()
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Address() common.Address {
	return c.address
}

// Owner returns the account allowed to withdrawAll and destroyFaucet.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	var out []any
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, faucet.MethodOwner); err != nil {
		return common.Address{}, fmt.Errorf("failed to call owner: %w", err)
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("owner returned empty result")
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Balance returns the faucet balance in wei.
func (c *Client) Balance(ctx context.Context) (*uint256.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for %s: %w", c.address.Hex(), err)
	}
	value, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("balance for %s overflows 256 bits", c.address.Hex())
	}
	return value, nil
}

func (c *Client) Code(ctx context.Context) ([]byte, error) {
	code, err := c.eth.CodeAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get code for %s: %w", c.address.Hex(), err)
	}
	return code, nil
}

// Alive reports whether contract code is still deployed at the address.
func (c *Client) Alive(ctx context.Context) (bool, error) {
	code, err := c.Code(ctx)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

func (c *Client) Withdraw(opts *bind.TransactOpts, amount *uint256.Int) (*types.Transaction, error) {
	return c.transact(opts, faucet.MethodWithdraw, amount.ToBig())
}

func (c *Client) WithdrawAll(opts *bind.TransactOpts) (*types.Transaction, error) {
	return c.transact(opts, faucet.MethodWithdrawAll)
}

func (c *Client) Destroy(opts *bind.TransactOpts) (*types.Transaction, error) {
	return c.transact(opts, faucet.MethodDestroy)
}

// Deposit sends amount to the receive entry point.
func (c *Client) Deposit(opts *bind.TransactOpts, amount *uint256.Int) (*types.Transaction, error) {
	withValue := *opts
	withValue.Value = amount.ToBig()
	tx, err := c.contract.Transfer(&withValue)
	if err != nil {
		return nil, fmt.Errorf("failed to deposit into %s: %w", c.address.Hex(), err)
	}
	return tx, nil
}

// WaitMined blocks until tx is mined and reports failed receipts as ErrReverted.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in block %s", ErrReverted, tx.Hash().Hex(), receipt.BlockNumber)
	}
	return receipt, nil
}

func (c *Client) transact(opts *bind.TransactOpts, method string, params ...any) (*types.Transaction, error) {
	tx, err := c.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	logger.Debugf("remote %s: sent %s to %s as %s", c.name, method, c.address.Hex(), tx.Hash().Hex())
	return tx, nil
}

// ChainID returns the chain id reported by the node, used to build signers.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}
