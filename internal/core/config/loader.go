package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// DefaultPath is used when neither a flag nor CONFIG_FILE names a file.
const DefaultPath = "config.yaml"

// ResolvePath picks the config file: the explicit path, then CONFIG_FILE,
// then DefaultPath.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("CONFIG_FILE"); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *AppConfig) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.EthWatch.ConfirmationsForEthEvent == nil {
		depth := DefaultConfirmations
		c.EthWatch.ConfirmationsForEthEvent = &depth
	}
	if c.EthWatch.PollInterval == 0 {
		c.EthWatch.PollInterval = 10 * time.Second
	}
	if c.EthWatch.QueueCapacity == 0 {
		c.EthWatch.QueueCapacity = 256
	}
	if c.EthClient.RequestTimeout == 0 {
		c.EthClient.RequestTimeout = 10 * time.Second
	}
	for i := range c.EthClient.Providers {
		if c.EthClient.Providers[i].Name == "" {
			c.EthClient.Providers[i].Name = fmt.Sprintf("provider-%d", i)
		}
	}
}

// Validate reports every missing or malformed required setting.
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.EthClient.Providers) == 0 {
		errs = append(errs, errors.New("eth_client.providers must not be empty"))
	}
	for i, p := range c.EthClient.Providers {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("eth_client.providers[%d] (%s): url is required", i, p.Name))
		}
	}
	if !common.IsHexAddress(c.Contracts.ContractAddr) {
		errs = append(errs, fmt.Errorf("contracts.contract_addr %q is not an address", c.Contracts.ContractAddr))
	}
	if c.EthWatch.PollInterval < 0 {
		errs = append(errs, errors.New("eth_watch.poll_interval must be positive"))
	}
	return errors.Join(errs...)
}
