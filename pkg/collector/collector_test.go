package collector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

var (
	ownerAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	aliceAddr = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func init() {
	_ = logger.InitLogger()
}

type readerFunc func(ctx context.Context, account *config.Account) (float64, error)

func (f readerFunc) ReadBalance(ctx context.Context, account *config.Account) (float64, error) {
	return f(ctx, account)
}

func ether(s string) *uint256.Int {
	return currency.MustParseAmount(s, currency.DefaultETH)
}

func TestAccountCollectorKeepsOrderAndFlagsFailures(t *testing.T) {
	accounts := []*config.Account{
		{Name: "test-account-1", Address: "address-1"},
		{Name: "broken", Address: "address-2"},
		{Name: "test-account-3", Address: "address-3"},
	}
	reader := readerFunc(func(ctx context.Context, account *config.Account) (float64, error) {
		if account.Name == "broken" {
			return 0, errors.New("node unavailable")
		}
		return 1.5, nil
	})

	c := NewAccountCollector("test", Local, currency.DefaultETH, accounts, reader, WithCollectorTimeout(5*time.Second))
	results := c.read()
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Same(t, accounts[i], r.Account)
	}
	assert.Equal(t, 1.0, results[0].health())
	assert.Equal(t, 0.0, results[1].health())
	assert.Equal(t, 1.5, results[2].Balance)
}

func TestAccountCollectorTimeoutMarksUnhealthy(t *testing.T) {
	accounts := []*config.Account{{Name: "slow", Address: "address-1"}}
	reader := readerFunc(func(ctx context.Context, account *config.Account) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	c := NewAccountCollector("test", Local, currency.DefaultETH, accounts, reader, WithCollectorTimeout(time.Millisecond))
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP faucet_account_health Whether the last balance read of an account succeeded
# TYPE faucet_account_health gauge
faucet_account_health{account_name="slow",address="address-1",module="local",source="test"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "faucet_account_health", "faucet_account_balance"))
}

func setupChain(t *testing.T) (*chain.Chain, *faucet.Session) {
	t.Helper()
	c := chain.New()
	require.NoError(t, c.Fund(ownerAddr, ether("10")))
	s, _, err := faucet.Deploy(context.Background(), c, ownerAddr, ether("1"))
	require.NoError(t, err)
	return c, s
}

func TestChainReader(t *testing.T) {
	c, _ := setupChain(t)
	r := NewChainReader(c, currency.DefaultETH)

	balance, err := r.ReadBalance(context.Background(), &config.Account{Name: "owner", Address: ownerAddr.Hex()})
	require.NoError(t, err)
	assert.Equal(t, 9.0, balance)
}

func TestNewCollectorsExportsLocalState(t *testing.T) {
	c, s := setupChain(t)
	cfg := &config.Schema{
		Chain: config.Chain{Accounts: []*config.Account{
			{Name: "owner", Address: ownerAddr.Hex()},
			{Name: "alice", Address: aliceAddr.Hex()},
		}},
		Faucet: config.Faucet{Unit: currency.DefaultETH},
	}

	set, err := NewCollectors(context.Background(), cfg, c, s)
	require.NoError(t, err)
	defer set.Close()

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, set.Register(reg))

	expected := `
# HELP faucet_alive 1 while the faucet code is deployed, 0 once destroyed
# TYPE faucet_alive gauge
faucet_alive{address="` + s.Address().Hex() + `",faucet="local",module="local"} 1
# HELP faucet_balance Balance held by the faucet contract
# TYPE faucet_balance gauge
faucet_balance{address="` + s.Address().Hex() + `",faucet="local",module="local",unit="ETH"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "faucet_alive", "faucet_balance"))

	expected = `
# HELP faucet_account_balance Balance of configured accounts
# TYPE faucet_account_balance gauge
faucet_account_balance{account_name="alice",address="` + aliceAddr.Hex() + `",module="local",source="local",unit="ETH"} 0
faucet_account_balance{account_name="owner",address="` + ownerAddr.Hex() + `",module="local",source="local",unit="ETH"} 9
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "faucet_account_balance"))
}

func TestFaucetCollectorAfterDestroy(t *testing.T) {
	_, s := setupChain(t)
	_, err := s.Destroy(context.Background(), ownerAddr)
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewFaucetCollector(currency.DefaultETH, []Target{{Name: "local", Module: Local, Reader: s}})))

	expected := `
# HELP faucet_alive 1 while the faucet code is deployed, 0 once destroyed
# TYPE faucet_alive gauge
faucet_alive{address="` + s.Address().Hex() + `",faucet="local",module="local"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "faucet_alive"))
}

type failingReader struct{ addr common.Address }

func (f failingReader) Address() common.Address { return f.addr }
func (f failingReader) Balance(context.Context) (*uint256.Int, error) {
	return nil, errors.New("unreachable")
}
func (f failingReader) Alive(context.Context) (bool, error) { return false, errors.New("unreachable") }

func TestFaucetCollectorUnhealthyRemote(t *testing.T) {
	reader := failingReader{addr: aliceAddr}
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewFaucetCollector(currency.DefaultETH, []Target{{Name: "sepolia", Module: Remote, Reader: reader}})))

	expected := `
# HELP faucet_health Whether the last read of the faucet succeeded
# TYPE faucet_health gauge
faucet_health{address="` + aliceAddr.Hex() + `",faucet="sepolia",module="remote"} 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "faucet_health", "faucet_balance"))
}
