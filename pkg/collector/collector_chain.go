package collector

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// BalanceReader is satisfied by *chain.Chain.
type BalanceReader interface {
	BalanceAt(ctx context.Context, addr common.Address) (*uint256.Int, error)
}

// ChainReader reads account balances from the in-process chain.
type ChainReader struct {
	chain BalanceReader
	unit  *currency.Unit
}

func NewChainReader(chain BalanceReader, unit *currency.Unit) *ChainReader {
	return &ChainReader{chain: chain, unit: unit}
}

func (r *ChainReader) ReadBalance(ctx context.Context, account *config.Account) (float64, error) {
	balance, err := r.chain.BalanceAt(ctx, common.HexToAddress(account.Address))
	if err != nil {
		return 0, fmt.Errorf("failed to get balance for %s: %w", account.Address, err)
	}
	logger.Debugf("balance for %s: %s wei (%s %s)", account.Address, balance.Dec(), currency.FormatAmount(balance, r.unit), r.unit.Symbol)
	return currency.Float64(balance, r.unit), nil
}
