package httpfiber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zama-ai/faucet-contract/pkg/api"
	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

var (
	ownerAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	userAddr  = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func init() {
	_ = logger.InitLogger()
}

func ether(s string) *uint256.Int {
	return currency.MustParseAmount(s, currency.DefaultETH)
}

type fixture struct {
	srv    *Server
	chain  *chain.Chain
	faucet *faucet.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := chain.New()
	require.NoError(t, c.Fund(ownerAddr, ether("10")))
	require.NoError(t, c.Fund(userAddr, ether("10")))
	s, _, err := faucet.Deploy(context.Background(), c, ownerAddr, ether("1"))
	require.NoError(t, err)

	cfg := &config.Schema{
		Global: config.Global{ListenAddr: ":0", LogLevel: "info"},
		Faucet: config.Faucet{Unit: currency.DefaultETH},
	}
	srv, err := NewServer(cfg, c, s, WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)
	return &fixture{srv: srv, chain: c, faucet: s}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestGetFaucet(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/faucet", nil)
	require.Equal(t, http.StatusOK, status)

	info := decode[api.FaucetInfo](t, body)
	assert.Equal(t, f.faucet.Address().Hex(), info.Address)
	assert.Equal(t, ownerAddr.Hex(), info.Owner)
	assert.Equal(t, "1", info.Balance)
	assert.Equal(t, "1000000000000000000", info.BalanceWei)
	assert.Equal(t, "0.1", info.Limit)
	assert.Equal(t, "ETH", info.Unit)
	assert.True(t, info.Alive)
	assert.Nil(t, info.Refill)
}

func TestWithdrawEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantKind   string
		wantFaucet string
	}{
		{
			name:       "within limit",
			body:       api.WithdrawRequest{From: userAddr.Hex(), Amount: "0.1"},
			wantStatus: http.StatusOK,
			wantFaucet: "0.9",
		},
		{
			name:       "above limit",
			body:       api.WithdrawRequest{From: userAddr.Hex(), Amount: "0.2"},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   api.KindLimitExceeded,
			wantFaucet: "1",
		},
		{
			name:       "bad address",
			body:       api.WithdrawRequest{From: "alice", Amount: "0.1"},
			wantStatus: http.StatusBadRequest,
			wantFaucet: "1",
		},
		{
			name:       "bad amount",
			body:       api.WithdrawRequest{From: userAddr.Hex(), Amount: "1e-1"},
			wantStatus: http.StatusBadRequest,
			wantFaucet: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			status, body := f.do(t, http.MethodPost, "/api/faucet/withdraw", tt.body)
			require.Equal(t, tt.wantStatus, status, string(body))

			if tt.wantKind != "" {
				resp := decode[api.ErrorResponse](t, body)
				assert.Equal(t, tt.wantKind, resp.Kind)
				require.NotNil(t, resp.Receipt)
				assert.Equal(t, uint64(0), resp.Receipt.Status)
			}
			if tt.wantStatus == http.StatusOK {
				resp := decode[api.TxResponse](t, body)
				assert.Equal(t, uint64(1), resp.Receipt.Status)
			}

			balance, err := f.faucet.Balance(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantFaucet, currency.FormatAmount(balance, currency.DefaultETH))
		})
	}
}

func TestOwnerOnlyEndpoints(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/faucet/withdrawAll", api.CallerRequest{From: userAddr.Hex()})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, api.KindUnauthorized, decode[api.ErrorResponse](t, body).Kind)

	status, body = f.do(t, http.MethodPost, "/api/faucet/destroy", api.CallerRequest{From: userAddr.Hex()})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, api.KindUnauthorized, decode[api.ErrorResponse](t, body).Kind)

	status, _ = f.do(t, http.MethodPost, "/api/faucet/destroy", api.CallerRequest{From: ownerAddr.Hex()})
	require.Equal(t, http.StatusOK, status)

	owner, err := f.chain.BalanceAt(context.Background(), ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, ether("10"), owner)

	status, body = f.do(t, http.MethodGet, "/api/faucet", nil)
	require.Equal(t, http.StatusOK, status)
	info := decode[api.FaucetInfo](t, body)
	assert.False(t, info.Alive)
	assert.Empty(t, info.Owner)

	status, body = f.do(t, http.MethodPost, "/api/faucet/withdraw", api.WithdrawRequest{From: userAddr.Hex(), Amount: "0.1"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, api.KindDestroyed, decode[api.ErrorResponse](t, body).Kind)

	status, body = f.do(t, http.MethodPost, "/api/faucet/deposit", api.DepositRequest{From: userAddr.Hex(), Amount: "1"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	resp := decode[api.ErrorResponse](t, body)
	assert.Equal(t, api.KindDestroyed, resp.Kind)
	assert.Nil(t, resp.Receipt)
}

func TestDepositAndAccount(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/faucet/deposit", api.DepositRequest{From: userAddr.Hex(), Amount: "0.5"})
	require.Equal(t, http.StatusOK, status)
	tx := decode[api.TxResponse](t, body)
	assert.Equal(t, "500000000000000000", tx.Receipt.ValueWei)

	status, body = f.do(t, http.MethodGet, "/api/accounts/"+userAddr.Hex(), nil)
	require.Equal(t, http.StatusOK, status)
	account := decode[api.Account](t, body)
	assert.Equal(t, "9.5", account.Balance)
	assert.Equal(t, uint64(1), account.Nonce)
	assert.False(t, account.IsContract)

	status, body = f.do(t, http.MethodGet, "/api/accounts/"+f.faucet.Address().Hex(), nil)
	require.Equal(t, http.StatusOK, status)
	account = decode[api.Account](t, body)
	assert.Equal(t, "1.5", account.Balance)
	assert.True(t, account.IsContract)

	status, body = f.do(t, http.MethodGet, "/api/receipts/"+tx.Receipt.TxHash, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, tx.Receipt.TxHash, decode[api.Receipt](t, body).TxHash)

	status, _ = f.do(t, http.MethodGet, "/api/receipts/"+common.Hash{}.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/api/receipts/0x1234", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/api/accounts/nope", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDepositOverflowIsRejected(t *testing.T) {
	f := newFixture(t)
	rich := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	// one wei more than the faucet can still hold
	room := new(uint256.Int).Sub(new(uint256.Int).SetAllOne(), ether("1"))
	amount := new(uint256.Int).AddUint64(room, 1)
	require.NoError(t, f.chain.Fund(rich, amount))

	status, body := f.do(t, http.MethodPost, "/api/faucet/deposit", api.DepositRequest{
		From:   rich.Hex(),
		Amount: currency.FormatAmount(amount, currency.DefaultETH),
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	errResp := decode[api.ErrorResponse](t, body)
	assert.Equal(t, api.KindBalanceOverflow, errResp.Kind)
	require.NotNil(t, errResp.Receipt)
	assert.Equal(t, uint64(0), errResp.Receipt.Status)

	balance, err := f.faucet.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ether("1"), balance)
}

func TestErrorKindFallsBackToReverted(t *testing.T) {
	err := &chain.RevertError{Receipt: &chain.Receipt{}, Err: errors.New("out of order")}
	assert.Equal(t, api.KindReverted, errorKind(err))
	assert.Equal(t, api.KindBalanceOverflow, errorKind(&chain.RevertError{Err: chain.ErrBalanceOverflow}))
	assert.Empty(t, errorKind(errors.New("disk full")))
}

func TestRefillDisabled(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, http.MethodPost, "/api/faucet/refill", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMetricsAndReadiness(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/faucet/withdraw", api.WithdrawRequest{From: userAddr.Hex(), Amount: "0.2"})

	status, body := f.do(t, http.MethodGet, "/readiness", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "ok")

	status, body = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(string(body), `faucet_requests_total{operation="withdraw",result="revert"} 1`), string(body))
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/faucet", nil)
	resp, err := f.srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/api/faucet", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err = f.srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}
