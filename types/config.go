package types

import "time"

// Config is a struct to hold the configuration data
type Config struct {
	Logging struct {
		OutputLevel  string `yaml:"outputLevel" envconfig:"LOGGING_OUTPUT_LEVEL"`
		OutputStderr bool   `yaml:"outputStderr" envconfig:"LOGGING_OUTPUT_STDERR"`

		FilePath       string `yaml:"filePath" envconfig:"LOGGING_FILE_PATH"`
		FileLevel      string `yaml:"fileLevel" envconfig:"LOGGING_FILE_LEVEL"`
		FileMaxSizeMB  int    `yaml:"fileMaxSizeMB" envconfig:"LOGGING_FILE_MAX_SIZE_MB"`
		FileMaxBackups int    `yaml:"fileMaxBackups" envconfig:"LOGGING_FILE_MAX_BACKUPS"`
	} `yaml:"logging"`

	Server struct {
		Port string `yaml:"port" envconfig:"FRONTEND_SERVER_PORT"`
		Host string `yaml:"host" envconfig:"FRONTEND_SERVER_HOST"`
	} `yaml:"server"`

	Frontend struct {
		Enabled bool `yaml:"enabled" envconfig:"FRONTEND_ENABLED"`
		Debug   bool `yaml:"debug" envconfig:"FRONTEND_DEBUG"`

		SiteName string `yaml:"siteName" envconfig:"FRONTEND_SITE_NAME"`

		HttpReadTimeout  time.Duration `yaml:"httpReadTimeout" envconfig:"FRONTEND_HTTP_READ_TIMEOUT"`
		HttpWriteTimeout time.Duration `yaml:"httpWriteTimeout" envconfig:"FRONTEND_HTTP_WRITE_TIMEOUT"`
		HttpIdleTimeout  time.Duration `yaml:"httpIdleTimeout" envconfig:"FRONTEND_HTTP_IDLE_TIMEOUT"`
	} `yaml:"frontend"`

	Api struct {
		CorsOrigins []string `yaml:"corsOrigins" envconfig:"API_CORS_ORIGINS"`
	} `yaml:"api"`

	RateLimit struct {
		Enabled    bool `yaml:"enabled" envconfig:"RATELIMIT_ENABLED"`
		ProxyCount uint `yaml:"proxyCount" envconfig:"RATELIMIT_PROXY_COUNT"`
		Rate       uint `yaml:"rate" envconfig:"RATELIMIT_RATE"`
		Burst      uint `yaml:"burst" envconfig:"RATELIMIT_BURST"`
	} `yaml:"rateLimit"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
		Public  bool   `yaml:"public" envconfig:"METRICS_PUBLIC"`
		Host    string `yaml:"host" envconfig:"METRICS_HOST"`
		Port    string `yaml:"port" envconfig:"METRICS_PORT"`
	} `yaml:"metrics"`

	Network struct {
		Name       string `yaml:"name" envconfig:"NETWORK_NAME"`
		ConfigPath string `yaml:"configPath" envconfig:"NETWORK_CONFIG_PATH"`
		AutoSwitch bool   `yaml:"autoSwitch" envconfig:"NETWORK_AUTO_SWITCH"`

		// partial descriptor merged over the preset
		Override NetworkDescriptor `yaml:"override"`

		// resolved descriptor, populated by ReadConfig
		Descriptor NetworkDescriptor `yaml:"-" ignored:"true"`
	} `yaml:"network"`

	Contract struct {
		Address string `yaml:"address" envconfig:"CONTRACT_ADDRESS"`
		AbiPath string `yaml:"abiPath" envconfig:"CONTRACT_ABI_PATH"`

		DefaultEntryFee string `yaml:"defaultEntryFee" envconfig:"CONTRACT_DEFAULT_ENTRY_FEE"` // in native units, e.g. "350"

		RegisterGasLimit        uint64 `yaml:"registerGasLimit" envconfig:"CONTRACT_REGISTER_GAS_LIMIT"`
		WithdrawPoolGasLimit    uint64 `yaml:"withdrawPoolGasLimit" envconfig:"CONTRACT_WITHDRAW_POOL_GAS_LIMIT"`
		WithdrawSpecialGasLimit uint64 `yaml:"withdrawSpecialGasLimit" envconfig:"CONTRACT_WITHDRAW_SPECIAL_GAS_LIMIT"`
		ContributeGasLimit      uint64 `yaml:"contributeGasLimit" envconfig:"CONTRACT_CONTRIBUTE_GAS_LIMIT"`
	} `yaml:"contract"`

	Wallet struct {
		Bindings []WalletBindingConfig `yaml:"bindings"`

		AutoConnect             bool          `yaml:"autoConnect" envconfig:"WALLET_AUTO_CONNECT"`
		AutoConnectDelay        time.Duration `yaml:"autoConnectDelay" envconfig:"WALLET_AUTO_CONNECT_DELAY"`
		ReceiptPollInterval     time.Duration `yaml:"receiptPollInterval" envconfig:"WALLET_RECEIPT_POLL_INTERVAL"`
		EventPollInterval       time.Duration `yaml:"eventPollInterval" envconfig:"WALLET_EVENT_POLL_INTERVAL"`
		ChainChangeRefreshDelay time.Duration `yaml:"chainChangeRefreshDelay" envconfig:"WALLET_CHAIN_CHANGE_REFRESH_DELAY"`
		RefreshInterval         time.Duration `yaml:"refreshInterval" envconfig:"WALLET_REFRESH_INTERVAL"`

		PassphraseEnv string `yaml:"passphraseEnv" envconfig:"WALLET_PASSPHRASE_ENV"`
		Account       string `yaml:"account" envconfig:"WALLET_ACCOUNT"`
	} `yaml:"wallet"`

	Notifications struct {
		DefaultDuration time.Duration `yaml:"defaultDuration" envconfig:"NOTIFICATIONS_DEFAULT_DURATION"`
		ShowDelay       time.Duration `yaml:"showDelay" envconfig:"NOTIFICATIONS_SHOW_DELAY"`
		DebugHistory    int           `yaml:"debugHistory" envconfig:"NOTIFICATIONS_DEBUG_HISTORY"`
	} `yaml:"notifications"`
}

// WalletBindingConfig describes one wallet provider exposed under a binding name.
type WalletBindingConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"` // keystore | rpc

	// rpc providers
	Url     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`

	// keystore providers
	KeystoreDir string   `yaml:"keystoreDir"`
	Chains      []string `yaml:"chains"` // network presets known to the wallet, defaults to the required network

	// expose the provider as web3.currentProvider instead of a top level binding
	Legacy bool `yaml:"legacy"`
}
