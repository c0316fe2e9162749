package wallet

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
)

// EnvironmentOptions carries what providers need besides their own binding config.
type EnvironmentOptions struct {
	Network           *types.NetworkDescriptor
	Authorizer        Authorizer
	EventPollInterval time.Duration
	Logger            logrus.FieldLogger
}

// Environment is the populated set of bindings plus the providers that need closing.
type Environment struct {
	Bindings *Bindings
	closers  []io.Closer
}

func (env *Environment) Close() {
	for _, closer := range env.closers {
		closer.Close()
	}
	env.closers = nil
}

// BuildEnvironment creates one provider per binding config and installs it
// under its binding name (or as web3.currentProvider for legacy bindings).
func BuildEnvironment(bindingConfigs []types.WalletBindingConfig, opts *EnvironmentOptions) (*Environment, error) {
	env := &Environment{
		Bindings: NewBindings(),
	}

	for idx := range bindingConfigs {
		bindingConfig := &bindingConfigs[idx]
		if bindingConfig.Name == "" {
			env.Close()
			return nil, fmt.Errorf("wallet binding %v without name", idx)
		}

		provider, closer, err := buildProvider(bindingConfig, opts)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("could not create wallet binding %v: %w", bindingConfig.Name, err)
		}
		env.closers = append(env.closers, closer)

		if bindingConfig.Legacy {
			env.Bindings.Set(BindingWeb3, &Web3Binding{CurrentProvider: provider})
		} else {
			env.Bindings.Set(bindingConfig.Name, provider)
		}

		opts.Logger.WithFields(logrus.Fields{
			"binding": bindingConfig.Name,
			"type":    bindingConfig.Type,
			"legacy":  bindingConfig.Legacy,
		}).Debug("wallet binding registered")
	}

	return env, nil
}

func buildProvider(bindingConfig *types.WalletBindingConfig, opts *EnvironmentOptions) (Provider, io.Closer, error) {
	switch strings.ToLower(bindingConfig.Type) {
	case "rpc":
		if bindingConfig.Url == "" {
			return nil, nil, fmt.Errorf("missing url")
		}
		provider := NewRPCProvider(bindingConfig.Name, bindingConfig.Url, bindingConfig.Headers, opts.EventPollInterval, opts.Logger)
		return provider, provider, nil

	case "keystore", "":
		if bindingConfig.KeystoreDir == "" {
			return nil, nil, fmt.Errorf("missing keystoreDir")
		}
		chains := []*types.NetworkDescriptor{}
		for _, chainName := range bindingConfig.Chains {
			chain, err := utils.LoadNetworkDescriptor(chainName, "")
			if err != nil {
				return nil, nil, err
			}
			chains = append(chains, chain)
		}
		if len(chains) == 0 {
			chains = append(chains, opts.Network)
		}

		ks := keystore.NewKeyStore(bindingConfig.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
		provider := NewKeystoreProvider(bindingConfig.Name, ks, opts.Authorizer, chains, opts.Logger)
		return provider, provider, nil

	default:
		return nil, nil, fmt.Errorf("unknown wallet binding type: %v", bindingConfig.Type)
	}
}
