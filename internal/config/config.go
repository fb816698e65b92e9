// Package config loads runtime configuration for healer sessions.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for a healing session.
// Values are populated from .healer.yaml, HEALER_* env vars, and CLI flags.
type Config struct {
	FixCommand      string `mapstructure:"fix_command"`
	Model           string `mapstructure:"model"`
	WorkDir         string `mapstructure:"work_dir"`
	OutputDir       string `mapstructure:"output_dir"`
	MaxIterations   int    `mapstructure:"max_iterations"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxFilesPerTask int    `mapstructure:"max_files_per_task"`
	Verbose         bool   `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("fix_command", "claude")
	viper.SetDefault("model", "")
	viper.SetDefault("work_dir", ".")
	viper.SetDefault("output_dir", ".healer")
	viper.SetDefault("max_iterations", 3)
	viper.SetDefault("timeout_seconds", 120)
	viper.SetDefault("max_files_per_task", 0)
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
