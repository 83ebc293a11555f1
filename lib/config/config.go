// Copyright 2026 The Arbor Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Arbor commands.
//
// Configuration is loaded from a single file specified by:
//   - ARBOR_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// Files ending in .yaml or .yml are parsed as YAML; .json and .jsonc
// files are parsed as JSON with comments and trailing commas allowed.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when the
// environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the master configuration for Arbor commands.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Portal configures the portal endpoints.
	Portal PortalConfig `yaml:"portal"`

	// Credentials configures where the bearer token comes from.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Reconnect configures the stream reconnection policy.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Portal      *PortalConfig      `yaml:"portal,omitempty"`
	Credentials *CredentialsConfig `yaml:"credentials,omitempty"`
	Reconnect   *ReconnectConfig   `yaml:"reconnect,omitempty"`
	Log         *LogConfig         `yaml:"log,omitempty"`
}

// PortalConfig configures the portal endpoints.
type PortalConfig struct {
	// BaseURL is the portal's base URL, e.g. "https://portal.example.com".
	// Required.
	BaseURL string `yaml:"base_url"`

	// StreamPath is the event-stream path relative to BaseURL.
	// Default: /api/v1/events/stream
	StreamPath string `yaml:"stream_path"`
}

// CredentialsConfig configures where the bearer token comes from.
// Exactly one of TokenEnv or TokenFile should be set.
type CredentialsConfig struct {
	// TokenEnv names an environment variable holding the bearer token.
	// Default: ARBOR_TOKEN
	TokenEnv string `yaml:"token_env"`

	// TokenFile is a file whose trimmed contents are the bearer token.
	// Takes precedence over TokenEnv when set.
	TokenFile string `yaml:"token_file"`
}

// ReconnectConfig configures the stream reconnection policy.
type ReconnectConfig struct {
	// BaseDelay is the first reconnect delay. Default: 1s.
	BaseDelay Duration `yaml:"base_delay"`

	// MaxDelay caps the reconnect delay. Default: 30s.
	MaxDelay Duration `yaml:"max_delay"`

	// MaxAttempts bounds consecutive failed reconnects before giving
	// up. Default: 10.
	MaxAttempts int `yaml:"max_attempts"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. These defaults are used as
// a base before loading the config file; the portal base URL has no
// default and must come from the file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Portal: PortalConfig{
			StreamPath: "/api/v1/events/stream",
		},
		Credentials: CredentialsConfig{
			TokenEnv: "ARBOR_TOKEN",
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   Duration(time.Second),
			MaxDelay:    Duration(30 * time.Second),
			MaxAttempts: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the ARBOR_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if ARBOR_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv("ARBOR_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ARBOR_CONFIG environment variable not set; " +
			"set it to the path of your arbor.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar variables in paths for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current
// config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// JSON config files may carry comments and trailing commas;
	// normalize to strict JSON first. YAML is a superset of JSON, so
	// one unmarshal path handles both formats.
	if strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonc") {
		data = jsonc.ToJSON(data)
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Portal != nil {
		if overrides.Portal.BaseURL != "" {
			c.Portal.BaseURL = overrides.Portal.BaseURL
		}
		if overrides.Portal.StreamPath != "" {
			c.Portal.StreamPath = overrides.Portal.StreamPath
		}
	}

	if overrides.Credentials != nil {
		if overrides.Credentials.TokenEnv != "" {
			c.Credentials.TokenEnv = overrides.Credentials.TokenEnv
		}
		if overrides.Credentials.TokenFile != "" {
			c.Credentials.TokenFile = overrides.Credentials.TokenFile
		}
	}

	if overrides.Reconnect != nil {
		if overrides.Reconnect.BaseDelay != 0 {
			c.Reconnect.BaseDelay = overrides.Reconnect.BaseDelay
		}
		if overrides.Reconnect.MaxDelay != 0 {
			c.Reconnect.MaxDelay = overrides.Reconnect.MaxDelay
		}
		if overrides.Reconnect.MaxAttempts != 0 {
			c.Reconnect.MaxAttempts = overrides.Reconnect.MaxAttempts
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Credentials.TokenFile = expandVars(c.Credentials.TokenFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// StreamURL returns the full event-stream URL.
func (c *Config) StreamURL() string {
	return strings.TrimRight(c.Portal.BaseURL, "/") + c.Portal.StreamPath
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Portal.BaseURL == "" {
		errs = append(errs, fmt.Errorf("portal.base_url is required"))
	}
	if c.Portal.StreamPath != "" && !strings.HasPrefix(c.Portal.StreamPath, "/") {
		errs = append(errs, fmt.Errorf("portal.stream_path must start with /"))
	}

	if c.Credentials.TokenEnv == "" && c.Credentials.TokenFile == "" {
		errs = append(errs, fmt.Errorf("credentials.token_env or credentials.token_file is required"))
	}

	if c.Reconnect.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.base_delay must be positive"))
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		errs = append(errs, fmt.Errorf("reconnect.max_delay must be at least reconnect.base_delay"))
	}
	if c.Reconnect.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.max_attempts must be positive"))
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", validLevels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
