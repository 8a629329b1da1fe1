// Package client talks to the faucet HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zama-ai/faucet-contract/pkg/api"
	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// Client represents a faucet API client
type Client struct {
	rest *resty.Client
}

type settings struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// RevertError is a transaction the faucet rejected. It unwraps to the
// matching contract error, so errors.Is(err, faucet.ErrLimitExceeded) holds.
type RevertError struct {
	Kind    string
	Message string
	Receipt *api.Receipt
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

var kindErrors = map[string]error{
	api.KindLimitExceeded:       faucet.ErrLimitExceeded,
	api.KindUnauthorized:        faucet.ErrUnauthorized,
	api.KindDestroyed:           faucet.ErrDestroyed,
	api.KindInsufficientBalance: faucet.ErrInsufficientBalance,
	api.KindNonPayable:          faucet.ErrNonPayable,
	api.KindUnknownMethod:       faucet.ErrUnknownMethod,
	api.KindNoCode:              chain.ErrNoCode,
	api.KindInsufficientFunds:   chain.ErrInsufficientFunds,
	api.KindBalanceOverflow:     chain.ErrBalanceOverflow,
}

func (e *RevertError) Unwrap() error {
	return kindErrors[e.Kind]
}

// StatusError is any other non 2xx answer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d: %s", e.StatusCode, e.Message)
}

type Option func(*settings)

// WithRetries sets how many times a failed attempt is repeated. Waits grow
// exponentially from backoff, with jitter, up to eight times backoff.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(s *settings) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) {
		s.httpClient = httpClient
	}
}

// NewClient creates a new faucet client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	s := &settings{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 3,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	rest := resty.NewWithClient(s.httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetLogger(logger.GetLogger()).
		SetRetryCount(s.maxRetries).
		SetRetryWaitTime(s.backoff).
		SetRetryMaxWaitTime(8 * s.backoff).
		AddRetryCondition(retryable).
		AddRetryHook(func(resp *resty.Response, err error) {
			if resp != nil && resp.Request != nil {
				logger.Warnf("%s %s attempt %d failed: %v", resp.Request.Method, resp.Request.URL, resp.Request.Attempt, describe(resp, err))
			}
		})
	return &Client{rest: rest}
}

// retryable reports whether a failed attempt is repeated. Reads are retried
// on transport errors and 5xx answers. Writes are retried only when no
// connection was made: a server that received one may already have mined it.
func retryable(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	if resp.Request.Method == http.MethodGet {
		return err != nil || resp.StatusCode() >= http.StatusInternalServerError
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func describe(resp *resty.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	return resp.Status()
}

func (c *Client) Info(ctx context.Context) (*api.FaucetInfo, error) {
	var info api.FaucetInfo
	if err := c.do(ctx, http.MethodGet, "/api/faucet", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Withdraw asks the faucet to send amount, a decimal in the faucet unit, to from.
func (c *Client) Withdraw(ctx context.Context, from, amount string) (*api.Receipt, error) {
	return c.transact(ctx, "/api/faucet/withdraw", api.WithdrawRequest{From: from, Amount: amount})
}

func (c *Client) WithdrawAll(ctx context.Context, from string) (*api.Receipt, error) {
	return c.transact(ctx, "/api/faucet/withdrawAll", api.CallerRequest{From: from})
}

func (c *Client) Destroy(ctx context.Context, from string) (*api.Receipt, error) {
	return c.transact(ctx, "/api/faucet/destroy", api.CallerRequest{From: from})
}

func (c *Client) Deposit(ctx context.Context, from, amount string) (*api.Receipt, error) {
	return c.transact(ctx, "/api/faucet/deposit", api.DepositRequest{From: from, Amount: amount})
}

// Refill triggers a refill check on the server.
func (c *Client) Refill(ctx context.Context) (*api.RefillEvent, error) {
	var event api.RefillEvent
	if err := c.do(ctx, http.MethodPost, "/api/faucet/refill", nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) Account(ctx context.Context, address string) (*api.Account, error) {
	var account api.Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(address), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) Receipt(ctx context.Context, hash string) (*api.Receipt, error) {
	var receipt api.Receipt
	if err := c.do(ctx, http.MethodGet, "/api/receipts/"+url.PathEscape(hash), nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) transact(ctx context.Context, path string, body any) (*api.Receipt, error) {
	var resp api.TxResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Receipt, nil
}

// do runs one API call. Rejections and 4xx answers are final.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var errResp api.ErrorResponse
	req := c.rest.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&errResp)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return ctxErr
		}
		return fmt.Errorf("failed to make request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		if errResp.Error == "" {
			errResp.Error = resp.String()
		}
		if resp.StatusCode() == http.StatusUnprocessableEntity && errResp.Kind != "" {
			return &RevertError{Kind: errResp.Kind, Message: errResp.Error, Receipt: errResp.Receipt}
		}
		return &StatusError{StatusCode: resp.StatusCode(), Message: errResp.Error}
	}
	return nil
}
