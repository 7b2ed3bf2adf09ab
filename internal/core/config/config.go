package config

import (
	"time"

	redisclient "github.com/vietddude/ethwatch/internal/infra/redis"
)

// DefaultConfirmations is the confirmation depth used when none is configured.
const DefaultConfirmations uint64 = 10

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	EthWatch  EthWatchConfig     `yaml:"eth_watch"`
	Contracts ContractsConfig    `yaml:"contracts"`
	EthClient EthClientConfig    `yaml:"eth_client"`
	Redis     redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// EthWatchConfig holds the watcher settings.
type EthWatchConfig struct {
	ConfirmationsForEthEvent *uint64       `yaml:"confirmations_for_eth_event"` // nil when not configured
	PollInterval             time.Duration `yaml:"poll_interval"`
	QueueCapacity            int           `yaml:"queue_capacity"`
}

// Confirmations returns the configured confirmation depth, or
// DefaultConfirmations when none is set. Zero is a valid depth.
func (c EthWatchConfig) Confirmations() uint64 {
	if c.ConfirmationsForEthEvent == nil {
		return DefaultConfirmations
	}
	return *c.ConfirmationsForEthEvent
}

// ContractsConfig holds deployed contract addresses.
type ContractsConfig struct {
	ContractAddr string `yaml:"contract_addr"`
}

// EthClientConfig holds settings for the Ethereum gateway.
type EthClientConfig struct {
	ChainID            uint64           `yaml:"chain_id"`
	Providers          []ProviderConfig `yaml:"providers"` // tried in order
	OperatorPrivateKey string           `yaml:"operator_private_key"`
	RequestTimeout     time.Duration    `yaml:"request_timeout"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}
