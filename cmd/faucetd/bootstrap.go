package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/zama-ai/faucet-contract/pkg/chain"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/faucet"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// bootstrap funds the genesis accounts and deploys the faucet from its owner.
func bootstrap(ctx context.Context, cfg *config.Schema) (*chain.Chain, *faucet.Session, error) {
	c := chain.New()
	for _, acc := range cfg.Chain.Accounts {
		balance, err := cfg.Faucet.Amount(acc.Balance)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid balance for account %s: %w", acc.Name, err)
		}
		if err := c.Fund(common.HexToAddress(acc.Address), balance); err != nil {
			return nil, nil, fmt.Errorf("failed to fund account %s: %w", acc.Name, err)
		}
		logger.Infof("funded account %s (%s) with %s %s", acc.Name, acc.Address, acc.Balance, cfg.Faucet.Unit.Symbol)
	}

	owner, ok := cfg.Account(cfg.Faucet.Owner)
	if !ok {
		return nil, nil, fmt.Errorf("unknown faucet owner %q", cfg.Faucet.Owner)
	}
	limit, err := cfg.Faucet.LimitWei()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid withdraw limit: %w", err)
	}
	funding, err := cfg.Faucet.InitialFundingWei()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid initial funding: %w", err)
	}

	session, _, err := faucet.Deploy(ctx, c, common.HexToAddress(owner.Address), funding, faucet.WithLimit(limit))
	if err != nil {
		return nil, nil, err
	}
	return c, session, nil
}
