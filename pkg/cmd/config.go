package cmd

import (
	"fmt"

	"github.com/logandonley/secure-gdrive/pkg/config"
	"github.com/spf13/viper"
)

// LoadConfig builds the configuration from viper (config file, environment
// and registered defaults).
func LoadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
