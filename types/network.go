package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NetworkDescriptor describes the chain the dapp requires and everything a
// wallet needs to add it when it is unknown.
type NetworkDescriptor struct {
	ChainID           uint64         `yaml:"chainId"`
	ChainName         string         `yaml:"chainName"`
	NativeCurrency    NativeCurrency `yaml:"nativeCurrency"`
	RpcUrls           []string       `yaml:"rpcUrls"`
	BlockExplorerUrls []string       `yaml:"blockExplorerUrls"`
}

type NativeCurrency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// AddChainParameter is the wallet_addEthereumChain request payload (EIP-3085).
type AddChainParameter struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RpcUrls           []string       `json:"rpcUrls"`
	BlockExplorerUrls []string       `json:"blockExplorerUrls,omitempty"`
}

// SwitchChainParameter is the wallet_switchEthereumChain request payload (EIP-3326).
type SwitchChainParameter struct {
	ChainID string `json:"chainId"`
}

func (n *NetworkDescriptor) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

func (n *NetworkDescriptor) ChainIDHex() string {
	return hexutil.EncodeUint64(n.ChainID)
}

func (n *NetworkDescriptor) CurrencySymbol() string {
	if n.NativeCurrency.Symbol == "" {
		return "ETH"
	}
	return n.NativeCurrency.Symbol
}

func (n *NetworkDescriptor) AddChainParameter() AddChainParameter {
	return AddChainParameter{
		ChainID:           n.ChainIDHex(),
		ChainName:         n.ChainName,
		NativeCurrency:    n.NativeCurrency,
		RpcUrls:           n.RpcUrls,
		BlockExplorerUrls: n.BlockExplorerUrls,
	}
}

// DescriptorFromAddChain converts a wallet_addEthereumChain payload back into a descriptor.
func DescriptorFromAddChain(param *AddChainParameter) (*NetworkDescriptor, error) {
	chainID, err := hexutil.DecodeUint64(param.ChainID)
	if err != nil {
		return nil, err
	}
	return &NetworkDescriptor{
		ChainID:           chainID,
		ChainName:         param.ChainName,
		NativeCurrency:    param.NativeCurrency,
		RpcUrls:           param.RpcUrls,
		BlockExplorerUrls: param.BlockExplorerUrls,
	}, nil
}
