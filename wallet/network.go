package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/types"
)

// NetworkError is returned when the provider could not be moved to the required chain.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network %v failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ChainID reads the active chain id of a provider.
func ChainID(ctx context.Context, provider Provider) (uint64, error) {
	var chainID hexutil.Big
	if err := provider.Request(ctx, &chainID, "eth_chainId"); err != nil {
		return 0, err
	}
	return chainID.ToInt().Uint64(), nil
}

// EnsureRequiredNetwork makes sure the provider is on the chain described by
// network. It is a no-op when the chain already matches. Otherwise it asks the
// wallet to switch, and adds the chain first when the wallet does not know it.
// Returns whether a switch or add request was issued.
func EnsureRequiredNetwork(ctx context.Context, provider Provider, network *types.NetworkDescriptor, logger logrus.FieldLogger) (bool, error) {
	current, err := ChainID(ctx, provider)
	if err != nil {
		return false, &NetworkError{Op: "chain id", Err: err}
	}

	logger.Debugf("current chain id: %v (required: %v)", current, network.ChainID)
	if current == network.ChainID {
		return false, nil
	}

	logger.Infof("switching wallet to %v (%v)", network.ChainName, network.ChainIDHex())
	err = provider.Request(ctx, nil, "wallet_switchEthereumChain", types.SwitchChainParameter{
		ChainID: network.ChainIDHex(),
	})
	if err == nil {
		return true, nil
	}

	if !isUnrecognizedChain(err) {
		logger.Warnf("chain switch failed: %v", err)
		return true, &NetworkError{Op: "switch", Err: err}
	}

	logger.Infof("chain %v unknown to wallet, adding it", network.ChainIDHex())
	err = provider.Request(ctx, nil, "wallet_addEthereumChain", network.AddChainParameter())
	if err != nil {
		return true, &NetworkError{Op: "add", Err: err}
	}

	return true, nil
}

func isUnrecognizedChain(err error) bool {
	if code, ok := ErrorCode(err); ok && code == CodeUnrecognizedChain {
		return true
	}
	// some mobile wallets wrap 4902 into an internal error
	if data, ok := ErrorData(err); ok {
		if dataMap, ok := data.(map[string]interface{}); ok {
			if orig, ok := dataMap["originalError"].(map[string]interface{}); ok {
				if code, ok := orig["code"].(float64); ok && int(code) == CodeUnrecognizedChain {
					return true
				}
			}
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unrecognized chain")
}
