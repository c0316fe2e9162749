package wallet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

var ErrProviderNotFound = errors.New("no wallet provider found")

// DetectionStrategy finds a provider candidate in the bindings.
type DetectionStrategy struct {
	Name   string
	Detect func(bindings *Bindings) (interface{}, bool)
}

// BindingStrategy detects a provider injected directly under name.
func BindingStrategy(name string) DetectionStrategy {
	return DetectionStrategy{
		Name: name,
		Detect: func(bindings *Bindings) (interface{}, bool) {
			return bindings.Lookup(name)
		},
	}
}

// LegacyWeb3Strategy detects the current provider of a legacy web3 object.
func LegacyWeb3Strategy() DetectionStrategy {
	return DetectionStrategy{
		Name: BindingWeb3 + ".currentProvider",
		Detect: func(bindings *Bindings) (interface{}, bool) {
			value, found := bindings.Lookup(BindingWeb3)
			if !found {
				return nil, false
			}
			web3, ok := value.(*Web3Binding)
			if !ok || web3.CurrentProvider == nil {
				return nil, false
			}
			return web3.CurrentProvider, true
		},
	}
}

// DefaultStrategies returns the detection order: the standard binding, the
// known alternate wallet bindings and finally the legacy web3 provider.
func DefaultStrategies() []DetectionStrategy {
	return []DetectionStrategy{
		BindingStrategy(BindingEthereum),
		BindingStrategy(BindingSafepalProvider),
		BindingStrategy(BindingSafepalWallet),
		LegacyWeb3Strategy(),
	}
}

// Resolution is the outcome of a successful provider lookup.
type Resolution struct {
	Handle    interface{}
	Source    string
	Installed bool // handle was installed into the primary binding
}

type Resolver struct {
	logger     logrus.FieldLogger
	primary    string
	strategies []DetectionStrategy
}

// NewResolver creates a resolver over the given strategies (DefaultStrategies if none).
func NewResolver(logger logrus.FieldLogger, strategies ...DetectionStrategy) *Resolver {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{
		logger:     logger,
		primary:    BindingEthereum,
		strategies: strategies,
	}
}

// Resolve returns the first candidate that exists. An alternate candidate is
// installed into the primary binding when that one is absent, so later code can
// treat the primary binding as authoritative.
func (r *Resolver) Resolve(bindings *Bindings) (*Resolution, error) {
	for _, strategy := range r.strategies {
		handle, found := strategy.Detect(bindings)
		if !found {
			continue
		}

		resolution := &Resolution{
			Handle: handle,
			Source: strategy.Name,
		}

		if strategy.Name != r.primary {
			if _, exists := bindings.Lookup(r.primary); !exists {
				bindings.Set(r.primary, handle)
				resolution.Installed = true
				r.logger.Debugf("installed %v as %v", strategy.Name, r.primary)
			}
		}

		r.logger.Debugf("wallet provider found: %v", strategy.Name)
		return resolution, nil
	}

	r.logger.Debugf("no wallet provider found in %v", bindings)
	return nil, ErrProviderNotFound
}

// BindingReport describes one detection candidate.
type BindingReport struct {
	Name       string `json:"name"`
	Exists     bool   `json:"exists"`
	HasRequest bool   `json:"has_request"`
}

// DetectionReport is a diagnostic snapshot of the wallet environment.
type DetectionReport struct {
	Bindings      []BindingReport  `json:"bindings"`
	Accounts      []common.Address `json:"accounts,omitempty"`
	AccountsError string           `json:"accounts_error,omitempty"`
	ChainID       *hexutil.Big     `json:"chain_id,omitempty"`
	ChainIDError  string           `json:"chain_id_error,omitempty"`
}

// Inspect reports which candidates exist and whether they expose the request
// capability. For a usable primary binding it also queries the authorized
// accounts and the active chain, without prompting.
func (r *Resolver) Inspect(ctx context.Context, bindings *Bindings) *DetectionReport {
	report := &DetectionReport{}

	for _, strategy := range r.strategies {
		handle, found := strategy.Detect(bindings)
		_, hasRequest := handle.(Provider)
		report.Bindings = append(report.Bindings, BindingReport{
			Name:       strategy.Name,
			Exists:     found,
			HasRequest: found && hasRequest,
		})
	}

	primary, found := bindings.Lookup(r.primary)
	if !found {
		return report
	}
	provider, ok := primary.(Provider)
	if !ok {
		return report
	}

	var accounts []common.Address
	if err := provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		report.AccountsError = err.Error()
	} else {
		report.Accounts = accounts
	}

	var chainID hexutil.Big
	if err := provider.Request(ctx, &chainID, "eth_chainId"); err != nil {
		report.ChainIDError = err.Error()
	} else {
		report.ChainID = &chainID
	}

	return report
}
