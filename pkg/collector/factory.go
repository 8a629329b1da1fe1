package collector

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/contract"
	"github.com/zama-ai/faucet-contract/pkg/logger"
)

// LocalSource names the in-process chain in metric labels.
const LocalSource = "local"

// Set groups the collectors built from a configuration.
type Set struct {
	Accounts *AccountCollector
	Faucets  *FaucetCollector
	remotes  []*contract.Client
}

// NewCollectors builds the account collector for the local chain and a faucet
// collector covering the local faucet plus every configured remote.
func NewCollectors(ctx context.Context, cfg *config.Schema, chain BalanceReader, local FaucetReader) (*Set, error) {
	unit := cfg.Faucet.Unit
	set := &Set{
		Accounts: NewAccountCollector(LocalSource, Local, unit, cfg.Chain.Accounts, NewChainReader(chain, unit)),
	}

	targets := []Target{{Name: LocalSource, Module: Local, Reader: local}}
	for _, remote := range cfg.Remotes {
		logger.Infof("initializing remote faucet collector for %s", remote.Name)
		client, err := contract.NewClient(ctx, remote)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("failed to init remote collector: %w", err)
		}
		set.remotes = append(set.remotes, client)
		targets = append(targets, Target{Name: remote.Name, Module: Remote, Reader: client})
	}
	set.Faucets = NewFaucetCollector(unit, targets)

	return set, nil
}

// Register adds every collector of the set to reg.
func (s *Set) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{s.Accounts, s.Faucets} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return nil
}

func (s *Set) Close() {
	for _, client := range s.remotes {
		client.Close()
	}
}
