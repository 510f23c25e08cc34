// ABOUTME: Configuration loading and parsing for grimoire-desktop
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete grimoire-desktop configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Updater  UpdaterConfig  `yaml:"updater"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the local HTTP API configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"` // 0 = probe for a free port
	MaxBodySize    int64         `yaml:"max_body_size"`
	RequestTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"` // empty = platform data directory
}

// AuthConfig holds credential validation and session configuration
type AuthConfig struct {
	AnthropicBaseURL string        `yaml:"anthropic_base_url"`
	SessionSecret    string        `yaml:"session_secret"` // empty = random per process
	ValidateTimeout  time.Duration `yaml:"-"`
	SessionTTL       time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ValidateTimeoutRaw string `yaml:"validate_timeout"`
	SessionTTLRaw      string `yaml:"session_ttl"`
}

// UpdaterConfig holds update checker configuration
type UpdaterConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckOnLaunch bool          `yaml:"check_on_launch"`
	AutoDownload  bool          `yaml:"auto_download"`
	AutoInstall   bool          `yaml:"auto_install"`
	FeedURL       string        `yaml:"feed_url"`
	LaunchDelay   time.Duration `yaml:"-"`
	CheckInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LaunchDelayRaw   string `yaml:"launch_delay"`
	CheckIntervalRaw string `yaml:"check_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			MaxBodySize:    10 << 20,
			RequestTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			AnthropicBaseURL: "https://api.anthropic.com",
			ValidateTimeout:  10 * time.Second,
			SessionTTL:       168 * time.Hour,
		},
		Updater: UpdaterConfig{
			Enabled:       true,
			CheckOnLaunch: true,
			AutoDownload:  true,
			AutoInstall:   false,
			FeedURL:       "https://releases.2389.dev/grimoire/latest.json",
			LaunchDelay:   5 * time.Second,
			CheckInterval: 6 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A missing file yields the defaults. Environment variables in the format
// ${VAR_NAME} are expanded, and a .env file in the working directory is loaded
// first when present. Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	// Developer convenience; missing .env is not an error
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
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

// Validate checks that all configuration fields are present and sane.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Auth.AnthropicBaseURL == "" {
		return fmt.Errorf("auth.anthropic_base_url is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Updater.Enabled {
		if c.Updater.CheckInterval <= 0 {
			return fmt.Errorf("updater.check_interval must be positive")
		}
		if c.Updater.LaunchDelay < 0 {
			return fmt.Errorf("updater.launch_delay must not be negative")
		}
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.RequestTimeoutRaw != "" {
		cfg.Server.RequestTimeout, err = time.ParseDuration(cfg.Server.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Server.RequestTimeoutRaw, err)
		}
	}

	if cfg.Auth.ValidateTimeoutRaw != "" {
		cfg.Auth.ValidateTimeout, err = time.ParseDuration(cfg.Auth.ValidateTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing validate_timeout %q: %w", cfg.Auth.ValidateTimeoutRaw, err)
		}
	}

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Updater.LaunchDelayRaw != "" {
		cfg.Updater.LaunchDelay, err = time.ParseDuration(cfg.Updater.LaunchDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing launch_delay %q: %w", cfg.Updater.LaunchDelayRaw, err)
		}
	}

	if cfg.Updater.CheckIntervalRaw != "" {
		cfg.Updater.CheckInterval, err = time.ParseDuration(cfg.Updater.CheckIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing check_interval %q: %w", cfg.Updater.CheckIntervalRaw, err)
		}
	}

	return nil
}
