package main

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
	"github.com/zama-ai/faucet-contract/pkg/validation"
)

const testConfig = `
global:
  listenAddr: ":0"
chain:
  accounts:
    - name: "owner"
      address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
      balance: "10"
    - name: "alice"
      address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
faucet:
  owner: "owner"
  initialFunding: "2"
  withdrawLimit: "0.05"
`

func init() {
	_ = logger.InitLogger()
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.ReadConfigWithError(strings.NewReader(testConfig))
	require.NoError(t, err)

	c, session, err := bootstrap(ctx, cfg)
	require.NoError(t, err)

	owner, err := session.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), owner)
	assert.Equal(t, currency.MustParseAmount("0.05", currency.DefaultETH), session.Limit())

	balance, err := session.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, currency.MustParseAmount("2", currency.DefaultETH), balance)

	ownerBalance, err := c.BalanceAt(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, currency.MustParseAmount("8", currency.DefaultETH), ownerBalance)
}

func TestBootstrapUnderfundedOwner(t *testing.T) {
	cfg, err := config.ReadConfigWithError(strings.NewReader(strings.Replace(testConfig, `initialFunding: "2"`, `initialFunding: "20"`, 1)))
	require.NoError(t, err)

	_, _, err = bootstrap(context.Background(), cfg)
	assert.Error(t, err)
}

// The example config has no credentials: whoever names the owner in "from"
// acts as the owner.
func TestExampleConfigTrustsCaller(t *testing.T) {
	t.Setenv("SEPOLIA_RPC_URL", "https://rpc.sepolia.example.org")
	t.Setenv("SEPOLIA_FAUCET_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	ctx := context.Background()

	cfg, err := config.ReadConfigFile("../../config.example.yaml")
	require.NoError(t, err)
	require.NoError(t, validation.NewConfigValidator().ValidateConfig(cfg))

	_, session, err := bootstrap(ctx, cfg)
	require.NoError(t, err)

	alice, ok := cfg.Account("alice")
	require.True(t, ok)
	_, err = session.WithdrawAll(ctx, common.HexToAddress(alice.Address))
	assert.ErrorIs(t, err, faucet.ErrUnauthorized)

	owner, ok := cfg.Account(cfg.Faucet.Owner)
	require.True(t, ok)
	receipt, err := session.WithdrawAll(ctx, common.HexToAddress(owner.Address))
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded())
}
