package validation

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/zama-ai/faucet-contract/pkg/config"
)

// EthereumValidator checks faucets deployed on external EVM nodes
type EthereumValidator struct {
	BaseValidator
}

func NewEthereumValidator() *EthereumValidator {
	return &EthereumValidator{}
}

func (v *EthereumValidator) ValidateRemote(remote *config.Remote) ValidationErrors {
	var errs ValidationErrors
	field := func(name string) string {
		return fmt.Sprintf("remote %s %s", remote.Name, name)
	}

	if remote.Name == "" {
		errs = append(errs, ValidationError{Field: "remotes.name", Message: "remote name cannot be empty"})
	}

	switch u, err := url.Parse(remote.HttpAddr); {
	case remote.HttpAddr == "":
		errs = append(errs, ValidationError{Field: field("httpAddr"), Message: "HTTP address cannot be empty"})
	case err != nil:
		errs = append(errs, ValidationError{Field: field("httpAddr"), Message: "invalid HTTP address URL"})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, ValidationError{Field: field("httpAddr"), Message: "URL scheme must be either http or https"})
	case u.Scheme == "https":
		// Only https connections read httpSSLVerify.
		if _, err := strconv.ParseBool(remote.HttpSSLVerify); err != nil {
			errs = append(errs, ValidationError{
				Field:   field("httpSSLVerify"),
				Message: "must be 'true' or 'false' for HTTPS connections",
			})
		}
	}

	if auth := remote.Authorization; auth != nil && (auth.Username == "" || auth.Password == "") {
		errs = append(errs, ValidationError{Field: field("authorization"), Message: "username and password are both required"})
	}

	return append(errs, v.ValidateAddress(field("contractAddress"), remote.ContractAddress)...)
}
