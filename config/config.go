package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"estatechain/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	AIValidator string `toml:"AIValidator"`
	RPCToken    string `toml:"RPCToken,omitempty"`
}

// Load loads the configuration from the given path, creating a default file
// with a freshly generated AI validator identity when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./estate-data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "estatechain-local"
	}
}

// Validate checks the fields that cannot be defaulted, most importantly that
// the AI validator identity parses as a bech32 address.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AIValidator) == "" {
		return fmt.Errorf("AIValidator is required")
	}
	if _, err := crypto.DecodeAddress(strings.TrimSpace(c.AIValidator)); err != nil {
		return fmt.Errorf("invalid AIValidator address: %w", err)
	}
	return nil
}

// ValidatorAddress decodes the configured AI validator identity.
func (c *Config) ValidatorAddress() (crypto.Address, error) {
	return crypto.DecodeAddress(strings.TrimSpace(c.AIValidator))
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate validator key: %w", err)
	}
	cfg := &Config{AIValidator: key.PubKey().Address().String()}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
