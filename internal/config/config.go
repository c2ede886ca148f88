// Package config provides Viper-based configuration management for apphost
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete apphost configuration
type Config struct {
	Topology     TopologyConfig                 `mapstructure:"topology"`
	Environments map[string]EnvironmentOverride `mapstructure:"environments"`
	Publish      PublishConfig                  `mapstructure:"publish"`
	Logging      LoggingConfig                  `mapstructure:"logging"`
	Output       OutputConfig                   `mapstructure:"output"`

	v *viper.Viper
}

// TopologyConfig locates the topology document and parameter sources
type TopologyConfig struct {
	Path       string `mapstructure:"path"`
	SecretsDir string `mapstructure:"secrets_dir"`
	EnvPrefix  string `mapstructure:"env_prefix"`
}

// EnvironmentOverride replaces declared environment settings
type EnvironmentOverride struct {
	DefaultDomain string `mapstructure:"default_domain"`
}

// PublishConfig controls publish runs
type PublishConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	ShowSecrets bool          `mapstructure:"show_secrets"`
	Output      string        `mapstructure:"output"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool   `mapstructure:"colors"`
	Color  string `mapstructure:"color"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".apphost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/apphost")
	}

	// APPHOST_PARAMETERS_OAI_APIKEY sets parameters.oai-apikey
	v.SetEnvPrefix("APPHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.v = v

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("topology.path", "topology.yaml")
	v.SetDefault("topology.secrets_dir", "")
	v.SetDefault("topology.env_prefix", "")

	v.SetDefault("publish.timeout", 5*time.Minute)
	v.SetDefault("publish.show_secrets", false)
	v.SetDefault("publish.output", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("output.colors", true)
	v.SetDefault("output.color", "auto")
	v.SetDefault("output.format", "table")
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be text or json)", cfg.Logging.Format)
	}

	validOutputs := map[string]bool{"table": true, "json": true, "yaml": true}
	if !validOutputs[cfg.Output.Format] {
		return fmt.Errorf("invalid output format: %s (must be table, json, or yaml)", cfg.Output.Format)
	}

	if cfg.Publish.Timeout < 0 {
		return fmt.Errorf("invalid publish timeout: %s", cfg.Publish.Timeout)
	}

	if cfg.Topology.Path == "" {
		return fmt.Errorf("topology path must not be empty")
	}

	return nil
}

// Settings exposes the raw settings for parameter lookups under
// parameters.<name>.
func (c *Config) Settings() *viper.Viper {
	return c.v
}

// DomainOverrides returns the configured default domain per environment.
func (c *Config) DomainOverrides() map[string]string {
	out := make(map[string]string, len(c.Environments))
	for name, env := range c.Environments {
		if env.DefaultDomain != "" {
			out[name] = env.DefaultDomain
		}
	}
	return out
}

// ConfigFile returns the file the configuration was read from, if any.
func (c *Config) ConfigFile() string {
	return c.v.ConfigFileUsed()
}
