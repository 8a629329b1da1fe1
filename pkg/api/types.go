// Package api holds the JSON documents exchanged by the faucet HTTP server and client.
// Amounts are decimal strings in the configured unit unless the field name ends in Wei.
package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/zama-ai/faucet-contract/pkg/chain"
)

// Revert kinds reported alongside HTTP 422 responses.
const (
	KindLimitExceeded       = "LimitExceeded"
	KindUnauthorized        = "Unauthorized"
	KindDestroyed           = "Destroyed"
	KindInsufficientBalance = "InsufficientBalance"
	KindInsufficientFunds   = "InsufficientFunds"
	KindNoCode              = "NoCode"
	KindNonPayable          = "NonPayable"
	KindUnknownMethod       = "UnknownMethod"
	KindBalanceOverflow     = "BalanceOverflow"
	// KindReverted is any other mined transaction that failed.
	KindReverted = "Reverted"
)

type WithdrawRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type CallerRequest struct {
	From string `json:"from"`
}

type DepositRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type FaucetInfo struct {
	Address    string      `json:"address"`
	Owner      string      `json:"owner,omitempty"`
	Balance    string      `json:"balance"`
	BalanceWei string      `json:"balanceWei"`
	Limit      string      `json:"limit"`
	LimitWei   string      `json:"limitWei"`
	Unit       string      `json:"unit"`
	Alive      bool        `json:"alive"`
	Refill     *RefillInfo `json:"refill,omitempty"`
}

type RefillInfo struct {
	Running   bool         `json:"running"`
	NextRun   string       `json:"nextRun,omitempty"`
	LastEvent *RefillEvent `json:"lastEvent,omitempty"`
}

type RefillEvent struct {
	Status    string `json:"status"`
	Balance   string `json:"balance,omitempty"`
	Amount    string `json:"amount,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Account struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	BalanceWei string `json:"balanceWei"`
	Nonce      uint64 `json:"nonce"`
	Code       string `json:"code,omitempty"`
	IsContract bool   `json:"isContract"`
}

type Receipt struct {
	TxHash          string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	From            string `json:"from"`
	To              string `json:"to,omitempty"`
	ContractAddress string `json:"contractAddress,omitempty"`
	Nonce           uint64 `json:"nonce"`
	ValueWei        string `json:"valueWei"`
	Status          uint64 `json:"status"`
	Output          string `json:"output,omitempty"`
	RevertReason    string `json:"revertReason,omitempty"`
}

type TxResponse struct {
	Receipt *Receipt `json:"receipt"`
}

// ErrorResponse is returned for every non 2xx status. Kind and Receipt are
// set for rejected transactions.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

// NewReceipt renders a chain receipt for the wire.
func NewReceipt(r *chain.Receipt) *Receipt {
	if r == nil {
		return nil
	}
	out := &Receipt{
		TxHash:       r.TxHash.Hex(),
		BlockNumber:  r.BlockNumber,
		From:         r.From.Hex(),
		Nonce:        r.Nonce,
		ValueWei:     "0",
		Status:       r.Status,
		RevertReason: r.RevertReason,
	}
	if r.To != nil {
		out.To = r.To.Hex()
	}
	if r.ContractAddress != nil {
		out.ContractAddress = r.ContractAddress.Hex()
	}
	if r.Value != nil {
		out.ValueWei = r.Value.Dec()
	}
	if len(r.Output) > 0 {
		out.Output = hexutil.Encode(r.Output)
	}
	return out
}
