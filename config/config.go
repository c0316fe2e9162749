package config

import (
	"embed"
)

// dapp config
//
//go:embed default.config.yml
var DefaultConfigYml string

// network presets
//
//go:embed *.network.yml
var NetworkPresets embed.FS

// matrix contract abi
//
//go:embed matrix.abi.json
var MatrixAbiJson string
