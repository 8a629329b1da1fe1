package validation

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zama-ai/faucet-contract/pkg/currency"
)

// BaseValidator provides checks shared by every section of the configuration
type BaseValidator struct{}

// ValidateAddress checks that addr is a non-empty, checksummed hex address
func (v *BaseValidator) ValidateAddress(field, addr string) ValidationErrors {
	var errors ValidationErrors

	if addr == "" {
		return append(errors, ValidationError{
			Field:   field,
			Message: "address cannot be empty",
		})
	}

	if !common.IsHexAddress(addr) {
		return append(errors, ValidationError{
			Field:   field,
			Message: "invalid Ethereum address format",
		})
	}

	checksumAddr := common.HexToAddress(addr).Hex()
	if addr != checksumAddr {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("address should be in checksum format: %s", checksumAddr),
		})
	}

	return errors
}

// ValidateAmount checks that s is an exact decimal amount in unit
func (v *BaseValidator) ValidateAmount(field, s string, unit *currency.Unit) ValidationErrors {
	if _, err := currency.ParseAmount(s, unit); err != nil {
		return ValidationErrors{{
			Field:   field,
			Message: err.Error(),
		}}
	}
	return nil
}
