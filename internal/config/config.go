// ABOUTME: Configuration loading and parsing for toolmux
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete toolmux configuration
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Database  DatabaseConfig            `yaml:"database"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Engine    EngineConfig              `yaml:"engine"`
	Discord   DiscordConfig             `yaml:"discord"`
	Formatter FormatterConfig           `yaml:"formatter"`
	Music     MusicConfig               `yaml:"music"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds the admin API address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig describes how to launch one tool-provider subprocess
type ProviderConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	WorkDir string            `yaml:"workdir"`
	Env     map[string]string `yaml:"env"`
	Default bool              `yaml:"default"`
}

// EngineConfig holds execution timing configuration
type EngineConfig struct {
	CallTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CallTimeoutRaw string `yaml:"call_timeout"`
}

// DiscordConfig holds Discord integration configuration
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Prefix  string `yaml:"prefix"`
}

// FormatterConfig holds the result-polish model configuration
type FormatterConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// MusicConfig holds the local playback library
type MusicConfig struct {
	Library []string `yaml:"library"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	defaults := 0
	for alias, p := range c.Providers {
		if p.Command == "" {
			return fmt.Errorf("providers.%s.command is required", alias)
		}
		if p.Default {
			defaults++
		}
	}
	if len(c.Providers) > 0 && defaults == 0 {
		return fmt.Errorf("exactly one provider must set default: true")
	}
	if defaults > 1 {
		return fmt.Errorf("only one provider may set default: true")
	}

	if c.Discord.Enabled && c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required when discord is enabled")
	}

	if c.Formatter.Enabled && c.Formatter.APIKey == "" {
		return fmt.Errorf("formatter.api_key is required when formatter is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Engine.CallTimeoutRaw != "" {
		cfg.Engine.CallTimeout, err = time.ParseDuration(cfg.Engine.CallTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing call_timeout %q: %w", cfg.Engine.CallTimeoutRaw, err)
		}
	}

	if cfg.Formatter.TimeoutRaw != "" {
		cfg.Formatter.Timeout, err = time.ParseDuration(cfg.Formatter.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing formatter timeout %q: %w", cfg.Formatter.TimeoutRaw, err)
		}
	}

	return nil
}

// DefaultAlias returns the alias marked default in Providers, or "".
func (c *Config) DefaultAlias() string {
	for alias, p := range c.Providers {
		if p.Default {
			return alias
		}
	}
	return ""
}
