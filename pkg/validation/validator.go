package validation

import (
	"fmt"
	"strings"

	"github.com/zama-ai/faucet-contract/pkg/config"
	"github.com/zama-ai/faucet-contract/pkg/logger"
	"github.com/zama-ai/faucet-contract/pkg/scheduler"
)

// ValidationError represents a validation error with a specific field and message
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var errMsgs []string
	for _, err := range e {
		errMsgs = append(errMsgs, err.Error())
	}
	return strings.Join(errMsgs, "; ")
}

// ConfigValidator handles validation of the entire configuration
type ConfigValidator struct {
	BaseValidator
	remote *EthereumValidator
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		remote: NewEthereumValidator(),
	}
}

// ValidateConfig validates the entire configuration schema
func (v *ConfigValidator) ValidateConfig(cfg *config.Schema) error {
	var allErrors ValidationErrors

	allErrors = append(allErrors, v.validateGlobal(&cfg.Global)...)
	allErrors = append(allErrors, v.validateChain(cfg)...)
	allErrors = append(allErrors, v.validateFaucet(cfg)...)

	seen := make(map[string]bool)
	for _, remote := range cfg.Remotes {
		if seen[remote.Name] {
			allErrors = append(allErrors, ValidationError{
				Field:   "remotes",
				Message: fmt.Sprintf("duplicate remote name: %s", remote.Name),
			})
		}
		seen[remote.Name] = true
		allErrors = append(allErrors, v.remote.ValidateRemote(remote)...)
	}

	if len(allErrors) > 0 {
		return allErrors
	}
	return nil
}

func (v *ConfigValidator) validateGlobal(global *config.Global) ValidationErrors {
	var errors ValidationErrors
	logger.Infof("validating global config: %+v", *global)

	if global.ListenAddr == "" {
		errors = append(errors, ValidationError{
			Field:   "global.listenAddr",
			Message: "cannot be empty",
		})
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(global.LogLevel)] {
		errors = append(errors, ValidationError{
			Field:   "global.logLevel",
			Message: "must be one of: debug, info, warn, error",
		})
	}

	return errors
}

func (v *ConfigValidator) validateChain(cfg *config.Schema) ValidationErrors {
	var errors ValidationErrors

	if len(cfg.Chain.Accounts) == 0 {
		return append(errors, ValidationError{
			Field:   "chain.accounts",
			Message: "at least one account must be specified",
		})
	}

	seen := make(map[string]bool)
	for _, acc := range cfg.Chain.Accounts {
		if acc.Name == "" {
			errors = append(errors, ValidationError{
				Field:   "chain.accounts.name",
				Message: "account name cannot be empty",
			})
			continue
		}
		key := strings.ToLower(acc.Name)
		if seen[key] {
			errors = append(errors, ValidationError{
				Field:   "chain.accounts",
				Message: fmt.Sprintf("duplicate account name: %s", acc.Name),
			})
		}
		seen[key] = true

		field := fmt.Sprintf("account %s", acc.Name)
		errors = append(errors, v.ValidateAddress(field, acc.Address)...)
		errors = append(errors, v.ValidateAmount(field+" balance", acc.Balance, cfg.Faucet.Unit)...)
	}

	return errors
}

func (v *ConfigValidator) validateFaucet(cfg *config.Schema) ValidationErrors {
	var errors ValidationErrors
	f := &cfg.Faucet

	if f.Unit == nil {
		return append(errors, ValidationError{
			Field:   "faucet.unit",
			Message: "unit cannot be empty",
		})
	}

	owner, ok := cfg.Account(f.Owner)
	if !ok {
		errors = append(errors, ValidationError{
			Field:   "faucet.owner",
			Message: fmt.Sprintf("unknown account: %q", f.Owner),
		})
	}

	errors = append(errors, v.ValidateAmount("faucet.initialFunding", f.InitialFunding, f.Unit)...)

	if limit, err := f.LimitWei(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "faucet.withdrawLimit",
			Message: err.Error(),
		})
	} else if limit.IsZero() {
		errors = append(errors, ValidationError{
			Field:   "faucet.withdrawLimit",
			Message: "must be greater than zero",
		})
	} else if standard, err := f.Amount(config.StandardWithdrawLimit); err == nil && !limit.Eq(standard) {
		logger.Warnf("faucet.withdrawLimit is %s %s instead of the standard %s %s; the cap is fixed once the faucet is deployed",
			f.WithdrawLimit, f.Unit.Symbol, config.StandardWithdrawLimit, f.Unit.Symbol)
	}

	if ok {
		funding, ferr := f.InitialFundingWei()
		balance, berr := f.Amount(owner.Balance)
		if ferr == nil && berr == nil && funding.Gt(balance) {
			errors = append(errors, ValidationError{
				Field:   "faucet.initialFunding",
				Message: fmt.Sprintf("exceeds the genesis balance of %s (%s %s)", owner.Name, owner.Balance, f.Unit.Symbol),
			})
		}
	}

	if f.Refill != nil {
		errors = append(errors, v.validateRefill(cfg)...)
	}

	return errors
}

func (v *ConfigValidator) validateRefill(cfg *config.Schema) ValidationErrors {
	var errors ValidationErrors
	r := cfg.Faucet.Refill

	if !r.Enabled {
		return nil
	}

	if _, err := scheduler.ScheduleParser.Parse(r.Schedule); err != nil {
		errors = append(errors, ValidationError{
			Field:   "faucet.refill.schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}

	if _, ok := cfg.Account(r.Treasury); !ok {
		errors = append(errors, ValidationError{
			Field:   "faucet.refill.treasury",
			Message: fmt.Sprintf("unknown account: %q", r.Treasury),
		})
	}

	if r.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "faucet.refill.timeout",
			Message: "cannot be negative",
		})
	}

	threshold, terr := cfg.Faucet.Amount(r.Threshold)
	if terr != nil {
		errors = append(errors, ValidationError{Field: "faucet.refill.threshold", Message: terr.Error()})
	}
	target, gerr := cfg.Faucet.Amount(r.Target)
	if gerr != nil {
		errors = append(errors, ValidationError{Field: "faucet.refill.target", Message: gerr.Error()})
	}
	if terr == nil && gerr == nil && !target.Gt(threshold) {
		errors = append(errors, ValidationError{
			Field:   "faucet.refill.target",
			Message: "must be greater than threshold",
		})
	}

	return errors
}
