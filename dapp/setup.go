package dapp

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/contract"
	"github.com/spsmatrix/dapp/types"
	"github.com/spsmatrix/dapp/utils"
	"github.com/spsmatrix/dapp/wallet"
)

// NewControllerFromConfig wires a controller from the process configuration.
func NewControllerFromConfig(cfg *types.Config, bindings *wallet.Bindings, logger logrus.FieldLogger) (*Controller, error) {
	contractAbi, err := contract.LoadABI(cfg.Contract.AbiPath)
	if err != nil {
		return nil, err
	}

	var contractAddress common.Address
	if cfg.Contract.Address != "" {
		if !common.IsHexAddress(cfg.Contract.Address) {
			return nil, fmt.Errorf("invalid contract address: %v", cfg.Contract.Address)
		}
		contractAddress = common.HexToAddress(cfg.Contract.Address)
	} else {
		logger.Warn("no contract address configured, contract calls will fail")
	}

	defaultEntryFee := big.NewInt(0)
	if fee := strings.TrimSpace(cfg.Contract.DefaultEntryFee); fee != "" {
		defaultEntryFee, err = utils.ParseNative(fee)
		if err != nil {
			return nil, fmt.Errorf("invalid default entry fee: %w", err)
		}
	}

	notifier := NewNotificationCenter(
		logger.WithField("module", "notifier"),
		cfg.Notifications.ShowDelay,
		cfg.Notifications.DefaultDuration,
		cfg.Notifications.DebugHistory,
	)

	network := cfg.Network.Descriptor
	return NewController(Options{
		Bindings:        bindings,
		Resolver:        wallet.NewResolver(logger.WithField("module", "resolver")),
		Network:         &network,
		ContractAddress: contractAddress,
		ContractABI:     contractAbi,
		DefaultEntryFee: defaultEntryFee,
		GasLimits: GasLimits{
			Register:        cfg.Contract.RegisterGasLimit,
			WithdrawPool:    cfg.Contract.WithdrawPoolGasLimit,
			WithdrawSpecial: cfg.Contract.WithdrawSpecialGasLimit,
			Contribute:      cfg.Contract.ContributeGasLimit,
		},
		AutoSwitchNetwork:       cfg.Network.AutoSwitch,
		ReceiptPollInterval:     cfg.Wallet.ReceiptPollInterval,
		ChainChangeRefreshDelay: cfg.Wallet.ChainChangeRefreshDelay,
		RefreshInterval:         cfg.Wallet.RefreshInterval,
		Notifier:                notifier,
		Logger:                  logger,
	})
}
