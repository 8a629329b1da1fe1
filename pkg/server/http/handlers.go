package httpfiber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"github.com/holiman/uint256"

	"github.com/zama-ai/faucet-contract/pkg/api"
	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
	"github.com/zama-ai/faucet-contract/pkg/scheduler"
)

const (
	resultSuccess    = "success"
	resultRevert     = "revert"
	resultBadRequest = "bad_request"
	resultError      = "error"
)

// errorKind maps contract and chain failures to their wire name. Destroyed is
// matched first since it wraps chain.ErrNoCode.
func errorKind(err error) string {
	switch {
	case errors.Is(err, faucet.ErrDestroyed):
		return api.KindDestroyed
	case errors.Is(err, faucet.ErrLimitExceeded):
		return api.KindLimitExceeded
	case errors.Is(err, faucet.ErrUnauthorized):
		return api.KindUnauthorized
	case errors.Is(err, faucet.ErrInsufficientBalance):
		return api.KindInsufficientBalance
	case errors.Is(err, faucet.ErrNonPayable):
		return api.KindNonPayable
	case errors.Is(err, faucet.ErrUnknownMethod):
		return api.KindUnknownMethod
	case errors.Is(err, chain.ErrNoCode):
		return api.KindNoCode
	case errors.Is(err, chain.ErrInsufficientFunds):
		return api.KindInsufficientFunds
	case errors.Is(err, chain.ErrBalanceOverflow):
		return api.KindBalanceOverflow
	}
	var revertErr *chain.RevertError
	if errors.As(err, &revertErr) {
		return api.KindReverted
	}
	return ""
}

func (s *Server) badRequest(c *fiber.Ctx, op string, err error) error {
	s.requests.WithLabelValues(op, resultBadRequest).Inc()
	return c.Status(fiber.StatusBadRequest).JSON(api.ErrorResponse{Error: err.Error()})
}

func (s *Server) internalError(c *fiber.Ctx, op string, err error) error {
	s.requests.WithLabelValues(op, resultError).Inc()
	logger.Errorf("%s failed: %v", op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorResponse{Error: err.Error()})
}

// txResult renders the outcome of a state changing call. Rejections are 422
// and carry the failed receipt when one was mined. A mined transaction is
// never reported as 500.
func (s *Server) txResult(c *fiber.Ctx, op string, receipt *chain.Receipt, err error) error {
	if err != nil {
		kind := errorKind(err)
		if kind == "" {
			return s.internalError(c, op, err)
		}
		s.requests.WithLabelValues(op, resultRevert).Inc()
		logger.Infof("%s rejected: %v", op, err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(api.ErrorResponse{
			Error:   err.Error(),
			Kind:    kind,
			Receipt: api.NewReceipt(receipt),
		})
	}
	s.requests.WithLabelValues(op, resultSuccess).Inc()
	return c.Status(fiber.StatusOK).JSON(api.TxResponse{Receipt: api.NewReceipt(receipt)})
}

// callContext tags chain side logs of one API call with its operation and caller.
func callContext(c *fiber.Ctx, op string, from common.Address) context.Context {
	return logger.WithAttrs(c.UserContext(), "operation", op, "from", from.Hex())
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func (s *Server) parseAmount(field, v string) (*uint256.Int, error) {
	amount, err := currency.ParseAmount(v, s.unit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

func (s *Server) getFaucet(c *fiber.Ctx) error {
	const op = "info"
	ctx := c.UserContext()

	alive, err := s.faucet.Alive(ctx)
	if err != nil {
		return s.internalError(c, op, err)
	}
	balance, err := s.faucet.Balance(ctx)
	if err != nil {
		return s.internalError(c, op, err)
	}

	limit := s.faucet.Limit()
	info := api.FaucetInfo{
		Address:    s.faucet.Address().Hex(),
		Balance:    currency.FormatAmount(balance, s.unit),
		BalanceWei: balance.Dec(),
		Limit:      currency.FormatAmount(limit, s.unit),
		LimitWei:   limit.Dec(),
		Unit:       s.unit.Symbol,
		Alive:      alive,
	}
	if alive {
		owner, err := s.faucet.Owner(ctx)
		if err != nil {
			return s.internalError(c, op, err)
		}
		info.Owner = owner.Hex()
	}
	if s.refill != nil {
		info.Refill = s.refillInfo()
	}

	s.requests.WithLabelValues(op, resultSuccess).Inc()
	return c.JSON(info)
}

func (s *Server) withdraw(c *fiber.Ctx) error {
	const op = "withdraw"
	var req api.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, op, err)
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return s.badRequest(c, op, err)
	}
	amount, err := s.parseAmount("amount", req.Amount)
	if err != nil {
		return s.badRequest(c, op, err)
	}

	receipt, err := s.faucet.Withdraw(callContext(c, op, from), from, amount)
	return s.txResult(c, op, receipt, err)
}

func (s *Server) withdrawAll(c *fiber.Ctx) error {
	const op = "withdrawAll"
	var req api.CallerRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, op, err)
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return s.badRequest(c, op, err)
	}

	receipt, err := s.faucet.WithdrawAll(callContext(c, op, from), from)
	return s.txResult(c, op, receipt, err)
}

func (s *Server) destroy(c *fiber.Ctx) error {
	const op = "destroy"
	var req api.CallerRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, op, err)
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return s.badRequest(c, op, err)
	}

	receipt, err := s.faucet.Destroy(callContext(c, op, from), from)
	return s.txResult(c, op, receipt, err)
}

func (s *Server) deposit(c *fiber.Ctx) error {
	const op = "deposit"
	var req api.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return s.badRequest(c, op, err)
	}
	from, err := parseAddress("from", req.From)
	if err != nil {
		return s.badRequest(c, op, err)
	}
	amount, err := s.parseAmount("amount", req.Amount)
	if err != nil {
		return s.badRequest(c, op, err)
	}

	receipt, err := s.faucet.Deposit(callContext(c, op, from), from, amount)
	return s.txResult(c, op, receipt, err)
}

func (s *Server) triggerRefill(c *fiber.Ctx) error {
	const op = "refill"
	if s.refill == nil {
		s.requests.WithLabelValues(op, resultBadRequest).Inc()
		return c.Status(fiber.StatusNotFound).JSON(api.ErrorResponse{Error: "refill is not enabled"})
	}

	event := s.refill.RunOnce(c.UserContext())
	if event.Status == scheduler.StatusFailed {
		return s.internalError(c, op, event.Error)
	}
	s.requests.WithLabelValues(op, resultSuccess).Inc()
	return c.JSON(s.refillEvent(event))
}

func (s *Server) getAccount(c *fiber.Ctx) error {
	const op = "account"
	ctx := c.UserContext()

	addr, err := parseAddress("address", c.Params("address"))
	if err != nil {
		return s.badRequest(c, op, err)
	}
	balance, err := s.chain.BalanceAt(ctx, addr)
	if err != nil {
		return s.internalError(c, op, err)
	}
	nonce, err := s.chain.NonceAt(ctx, addr)
	if err != nil {
		return s.internalError(c, op, err)
	}
	code, err := s.chain.CodeAt(ctx, addr)
	if err != nil {
		return s.internalError(c, op, err)
	}

	account := api.Account{
		Address:    addr.Hex(),
		Balance:    currency.FormatAmount(balance, s.unit),
		BalanceWei: balance.Dec(),
		Nonce:      nonce,
		IsContract: len(code) > 0,
	}
	if len(code) > 0 {
		account.Code = hexutil.Encode(code)
	}

	s.requests.WithLabelValues(op, resultSuccess).Inc()
	return c.JSON(account)
}

func (s *Server) getReceipt(c *fiber.Ctx) error {
	const op = "receipt"
	raw := c.Params("hash")
	if len(raw) != 2+2*common.HashLength || !strings.HasPrefix(raw, "0x") {
		return s.badRequest(c, op, fmt.Errorf("hash: invalid transaction hash %q", raw))
	}
	if _, err := hexutil.Decode(raw); err != nil {
		return s.badRequest(c, op, fmt.Errorf("hash: %w", err))
	}

	receipt, err := s.chain.Receipt(c.UserContext(), common.HexToHash(raw))
	if errors.Is(err, chain.ErrReceiptNotFound) {
		s.requests.WithLabelValues(op, resultBadRequest).Inc()
		return c.Status(fiber.StatusNotFound).JSON(api.ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return s.internalError(c, op, err)
	}

	s.requests.WithLabelValues(op, resultSuccess).Inc()
	return c.JSON(api.NewReceipt(receipt))
}

func (s *Server) refillInfo() *api.RefillInfo {
	info := &api.RefillInfo{Running: s.refill.IsRunning()}
	if next := s.refill.GetNextRun(); !next.IsZero() {
		info.NextRun = next.UTC().Format(time.RFC3339)
	}
	if last := s.refill.LastEvent(); last != nil {
		info.LastEvent = s.refillEvent(last)
	}
	return info
}

func (s *Server) refillEvent(e *scheduler.RefillEvent) *api.RefillEvent {
	out := &api.RefillEvent{
		Status:    e.Status,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.Balance != nil {
		out.Balance = currency.FormatAmount(e.Balance, s.unit)
	}
	if e.Amount != nil {
		out.Amount = currency.FormatAmount(e.Amount, s.unit)
	}
	if e.TxHash != (common.Hash{}) {
		out.TxHash = e.TxHash.Hex()
	}
	if e.Error != nil {
		out.Error = e.Error.Error()
	}
	return out
}
