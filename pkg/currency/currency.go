// Package currency holds the native denominations a faucet is configured in
// and exact conversion between them and wei.
package currency

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// maxDecimals bounds custom units so 10^Decimals stays far inside uint256.
const maxDecimals = 36

// Unit is a denomination of the chain's native coin.
type Unit struct {
	Name     string
	Symbol   string
	Decimals int
}

var (
	DefaultETH  = &Unit{Name: "ETH", Symbol: "ETH", Decimals: 18}
	DefaultGWEI = &Unit{Name: "GWEI", Symbol: "GWEI", Decimals: 9}
	DefaultWEI  = &Unit{Name: "WEI", Symbol: "WEI", Decimals: 0}
)

// Registry maps case insensitive unit names to units.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*Unit
}

var defaultRegistry = NewDefaultRegistry()

func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

// NewDefaultRegistry knows ETH, GWEI and WEI.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, u := range []*Unit{DefaultETH, DefaultGWEI, DefaultWEI} {
		if err := r.Register(u); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(unit *Unit) error {
	if err := unit.validate(); err != nil {
		return err
	}
	key := strings.ToUpper(unit.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.units[key]; exists {
		return fmt.Errorf("currency unit %s already registered", key)
	}
	r.units[key] = unit
	return nil
}

func (r *Registry) Lookup(name string) (*Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	unit, ok := r.units[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown currency unit %q", name)
	}
	return unit, nil
}

// Names lists the registered unit names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves one of the built in units.
func Lookup(name string) (*Unit, error) {
	return defaultRegistry.Lookup(name)
}

func (u *Unit) validate() error {
	if u == nil || u.Name == "" {
		return fmt.Errorf("currency unit name cannot be empty")
	}
	if u.Decimals < 0 || u.Decimals > maxDecimals {
		return fmt.Errorf("currency unit %s: decimals must be within [0, %d], got %d", u.Name, maxDecimals, u.Decimals)
	}
	return nil
}

// UnmarshalYAML accepts either a built in unit name ("ETH") or a mapping
// describing the native coin of another chain:
//
//	unit:
//	  name: POL
//	  decimals: 18
func (u *Unit) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err == nil {
		unit, err := Lookup(name)
		if err != nil {
			return err
		}
		*u = *unit
		return nil
	}

	var custom struct {
		Name     string `yaml:"name"`
		Symbol   string `yaml:"symbol"`
		Decimals *int   `yaml:"decimals"`
	}
	if err := unmarshal(&custom); err != nil {
		return err
	}
	if custom.Decimals == nil {
		return fmt.Errorf("currency unit %s: decimals is required", custom.Name)
	}
	unit := Unit{Name: strings.ToUpper(custom.Name), Symbol: custom.Symbol, Decimals: *custom.Decimals}
	if unit.Symbol == "" {
		unit.Symbol = unit.Name
	}
	if err := unit.validate(); err != nil {
		return err
	}
	*u = unit
	return nil
}

func (u *Unit) String() string {
	return u.Symbol
}
