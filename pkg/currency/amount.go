package currency

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Factor returns 10^Decimals, the number of wei in one unit.
func (u *Unit) Factor() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(u.Decimals)), nil)
}

// ParseAmount parses a human decimal amount such as "0.1" expressed in unit
// into an exact wei count. Negative values, exponents and more fractional
// digits than the unit supports are rejected.
func ParseAmount(s string, unit *Unit) (*uint256.Int, error) {
	if unit == nil {
		return nil, fmt.Errorf("currency unit cannot be nil")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if hasDot && fracPart == "" && intPart == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, fmt.Errorf("invalid amount %q: only unsigned decimal numbers are accepted", s)
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > unit.Decimals {
		return nil, fmt.Errorf("invalid amount %q: %s supports at most %d decimal places", s, unit.Symbol, unit.Decimals)
	}

	digits := intPart + fracPart + strings.Repeat("0", unit.Decimals-len(fracPart))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}

	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount %q overflows uint256", s)
	}
	return out, nil
}

// MustParseAmount is like ParseAmount but panics on error
func MustParseAmount(s string, unit *Unit) *uint256.Int {
	v, err := ParseAmount(s, unit)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatAmount renders a wei count in unit without precision loss and
// without trailing zeros, e.g. 1e17 wei in ETH is "0.1".
func FormatAmount(v *uint256.Int, unit *Unit) string {
	if v == nil {
		return "0"
	}
	if unit == nil || unit.Decimals == 0 {
		return v.Dec()
	}
	q, r := new(big.Int).QuoRem(v.ToBig(), unit.Factor(), new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%0*s", unit.Decimals, r.String()), "0")
	return q.String() + "." + frac
}

// Float64 returns v expressed in unit as an approximate float, for gauges.
func Float64(v *uint256.Int, unit *Unit) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v.ToBig())
	if unit != nil && unit.Decimals > 0 {
		f.Quo(f, new(big.Float).SetInt(unit.Factor()))
	}
	out, _ := f.Float64()
	return out
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
