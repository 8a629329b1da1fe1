package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/zama-ai/faucet-contract/pkg/currency"
	"gopkg.in/yaml.v2"
)

type Schema struct {
	Global  Global    `yaml:"global"`
	Chain   Chain     `yaml:"chain"`
	Faucet  Faucet    `yaml:"faucet"`
	Remotes []*Remote `yaml:"remotes"`
}

type Global struct {
	Environment   string `yaml:"environment"`
	ListenAddr    string `yaml:"listenAddr"`
	ListenAddrEnv string `yaml:"listenAddrEnv"`
	LogLevel      string `yaml:"logLevel"`
}

// Chain describes the genesis state of the in-process chain
type Chain struct {
	Accounts []*Account `yaml:"accounts"`
}

type Account struct {
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	AddressEnv string `yaml:"addressEnv"`
	Balance    string `yaml:"balance"` // Genesis balance, in the faucet unit
}

type Faucet struct {
	Owner          string         `yaml:"owner"` // Name of the deploying account
	Unit           *currency.Unit `yaml:"unit"`
	InitialFunding string         `yaml:"initialFunding"`
	WithdrawLimit  string         `yaml:"withdrawLimit"`
	Refill         *Refill        `yaml:"refill"`
}

// Refill configures the scheduler topping the faucet up from a treasury account
type Refill struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"` // Cron expression, e.g. "@every 30m" or "0 */5 * * * *"
	Treasury  string `yaml:"treasury"` // Name of the paying account
	Threshold string `yaml:"threshold"`
	Target    string `yaml:"target"`
	Timeout   int    `yaml:"timeout"` // Seconds, default 30
}

// Remote is a faucet contract deployed on an external EVM node, watched by the collector
type Remote struct {
	Name               string         `yaml:"name"`
	HttpAddr           string         `yaml:"httpAddr"`
	HttpAddrEnv        string         `yaml:"httpAddrEnv"`
	HttpSSLVerify      string         `yaml:"httpSSLVerify"`
	ContractAddress    string         `yaml:"contractAddress"`
	ContractAddressEnv string         `yaml:"contractAddressEnv"`
	Authorization      *Authorization `yaml:"authorization"`
}

type Authorization struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (s *Schema) Normalize() error {
	s.Global.Normalize()
	for _, acc := range s.Chain.Accounts {
		if err := acc.Normalize(); err != nil {
			return fmt.Errorf("failed to normalize account %s: %w", acc.Name, err)
		}
	}
	if err := s.Faucet.Normalize(); err != nil {
		return fmt.Errorf("failed to normalize faucet config: %w", err)
	}
	for _, remote := range s.Remotes {
		remote.Normalize()
	}
	return nil
}

func (g *Global) Normalize() {
	g.ListenAddr = envOr(g.ListenAddrEnv, g.ListenAddr)
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
}

func (a *Account) Normalize() error {
	a.Address = envOr(a.AddressEnv, a.Address)
	if a.Balance == "" {
		a.Balance = "0"
	}
	return nil
}

// StandardWithdrawLimit is the per-call cap a faucet is expected to have, in
// the configured unit. A deployment may override it; the cap is then fixed for
// the lifetime of that faucet.
const StandardWithdrawLimit = "0.1"

func (f *Faucet) Normalize() error {
	if f.Unit == nil {
		f.Unit = currency.DefaultETH
	}
	if f.WithdrawLimit == "" {
		f.WithdrawLimit = StandardWithdrawLimit
	}
	if f.InitialFunding == "" {
		f.InitialFunding = "1"
	}
	if f.Refill != nil {
		return f.Refill.Normalize()
	}
	return nil
}

func (r *Refill) Normalize() error {
	if r.Timeout == 0 {
		r.Timeout = 30 // Default timeout of 30 seconds
	}
	if r.Schedule == "" {
		r.Schedule = "@every 30m" // Default to every 30 minutes
	}
	return nil
}

func (r *Remote) Normalize() {
	r.HttpAddr = envOr(r.HttpAddrEnv, r.HttpAddr)
	r.ContractAddress = envOr(r.ContractAddressEnv, r.ContractAddress)
}

// IsRefillEnabled returns true when the refill scheduler should run
// SkipTLSVerify reports whether httpSSLVerify explicitly disables certificate checks.
func (r *Remote) SkipTLSVerify() bool {
	verify, err := strconv.ParseBool(r.HttpSSLVerify)
	return err == nil && !verify
}

func (f *Faucet) IsRefillEnabled() bool {
	return f.Refill != nil && f.Refill.Enabled
}

// Amount parses a decimal amount expressed in the faucet unit
func (f *Faucet) Amount(s string) (*uint256.Int, error) {
	return currency.ParseAmount(s, f.Unit)
}

func (f *Faucet) LimitWei() (*uint256.Int, error) {
	return f.Amount(f.WithdrawLimit)
}

func (f *Faucet) InitialFundingWei() (*uint256.Int, error) {
	return f.Amount(f.InitialFunding)
}

// Account looks an account up by name, case insensitively
func (s *Schema) Account(name string) (*Account, bool) {
	for _, acc := range s.Chain.Accounts {
		if strings.EqualFold(acc.Name, name) {
			return acc, true
		}
	}
	return nil, false
}

func envOr(envName, fallback string) string {
	if envName == "" {
		return fallback
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return fallback
}

func ReadConfigWithError(r io.Reader) (*Schema, error) {
	config := &Schema{}
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := config.Normalize(); err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}
	return config, nil
}

// ReadConfigFile opens path and reads the configuration it holds
func ReadConfigFile(path string) (*Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return ReadConfigWithError(file)
}
