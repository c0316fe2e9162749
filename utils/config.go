package utils

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/spsmatrix/dapp/config"
	"github.com/spsmatrix/dapp/types"
)

// Config is the globally accessible configuration
var Config *types.Config

// ReadConfig will process a configuration
func ReadConfig(cfg *types.Config, path string) error {
	err := readConfigFile(cfg, path)
	if err != nil {
		return err
	}

	err = readConfigEnv(cfg)
	if err != nil {
		return fmt.Errorf("error processing environment config: %w", err)
	}

	descriptor, err := LoadNetworkDescriptor(cfg.Network.Name, cfg.Network.ConfigPath)
	if err != nil {
		return err
	}

	err = mergo.Merge(descriptor, cfg.Network.Override, mergo.WithOverride)
	if err != nil {
		return fmt.Errorf("error merging network override: %v", err)
	}
	if descriptor.ChainID == 0 {
		return fmt.Errorf("network descriptor without chain id")
	}
	cfg.Network.Descriptor = *descriptor

	if cfg.Contract.Address != "" && !common.IsHexAddress(cfg.Contract.Address) {
		return fmt.Errorf("invalid contract address: %v", cfg.Contract.Address)
	}

	log.WithFields(log.Fields{
		"chainId":   cfg.Network.Descriptor.ChainID,
		"chainName": cfg.Network.Descriptor.ChainName,
		"contract":  cfg.Contract.Address,
		"bindings":  len(cfg.Wallet.Bindings),
	}).Infof("did init config")

	return nil
}

// LoadNetworkDescriptor loads a network descriptor from a file path or, if no path is given, from the embedded presets.
func LoadNetworkDescriptor(name string, path string) (*types.NetworkDescriptor, error) {
	descriptor := &types.NetworkDescriptor{}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error opening network config file %v: %w", path, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		err = decoder.Decode(descriptor)
		if err != nil {
			return nil, fmt.Errorf("error decoding network config file %v: %v", path, err)
		}
		return descriptor, nil
	}

	if name == "" {
		name = "polygon"
	}

	presetYml, err := config.NetworkPresets.ReadFile(strings.ToLower(name) + ".network.yml")
	if err != nil {
		return nil, fmt.Errorf("tried to use unknown network preset: %v", name)
	}

	err = yaml.Unmarshal(presetYml, descriptor)
	if err != nil {
		return nil, fmt.Errorf("error decoding network preset %v: %v", name, err)
	}

	return descriptor, nil
}

func readConfigFile(cfg *types.Config, path string) error {
	if path == "" {
		return yaml.Unmarshal([]byte(config.DefaultConfigYml), cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(cfg)
	if err != nil {
		return fmt.Errorf("error decoding config file %v: %v", path, err)
	}

	return nil
}

func readConfigEnv(cfg *types.Config) error {
	return envconfig.Process("", cfg)
}
