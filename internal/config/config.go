// Package config handles TOML configuration parsing and validation for
// athena-dhcpc.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for athena-dhcpc.
type Config struct {
	Client  ClientConfig  `toml:"client"`
	Journal JournalConfig `toml:"journal"`
	Metrics MetricsConfig `toml:"metrics"`
	Checks  ChecksConfig  `toml:"checks"`
	Hooks   HooksConfig   `toml:"hooks"`
}

// ClientConfig holds core client settings.
type ClientConfig struct {
	Interface      string `toml:"interface"`
	Hostname       string `toml:"hostname"`
	LogLevel       string `toml:"log_level"`
	PollInterval   string `toml:"poll_interval"`
	RequestTimeout string `toml:"request_timeout"`
	// CustomOption is an extra option code to request and expose through the
	// hook environment. 0 disables it.
	CustomOption int    `toml:"custom_option"`
	PIDFile      string `toml:"pid_file"`
}

// JournalConfig holds diagnostic journal settings.
type JournalConfig struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	MaxEntries int    `toml:"max_entries"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// ChecksConfig holds post-bind verification settings.
type ChecksConfig struct {
	DNS            bool   `toml:"dns"`
	DNSTimeout     string `toml:"dns_timeout"`
	Gateway        bool   `toml:"gateway"`
	GatewayTimeout string `toml:"gateway_timeout"`
}

// HooksConfig holds script hook settings.
type HooksConfig struct {
	Command         string   `toml:"command"`
	Events          []string `toml:"events"`
	Timeout         string   `toml:"timeout"`
	Concurrency     int      `toml:"concurrency"`
	EventBufferSize int      `toml:"event_buffer_size"`
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Client.Interface == "" {
		cfg.Client.Interface = DefaultInterface
	}
	if cfg.Client.LogLevel == "" {
		cfg.Client.LogLevel = DefaultLogLevel
	}
	if cfg.Client.PollInterval == "" {
		cfg.Client.PollInterval = DefaultPollInterval.String()
	}
	if cfg.Client.RequestTimeout == "" {
		cfg.Client.RequestTimeout = DefaultRequestTimeout.String()
	}
	if cfg.Client.PIDFile == "" {
		cfg.Client.PIDFile = DefaultPIDFile
	}

	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.MaxEntries == 0 {
		cfg.Journal.MaxEntries = DefaultJournalMaxEntries
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}

	if cfg.Checks.DNSTimeout == "" {
		cfg.Checks.DNSTimeout = DefaultDNSCheckTimeout.String()
	}
	if cfg.Checks.GatewayTimeout == "" {
		cfg.Checks.GatewayTimeout = DefaultGatewayProbeTimeout.String()
	}

	if cfg.Hooks.Timeout == "" {
		cfg.Hooks.Timeout = DefaultHookTimeout.String()
	}
	if cfg.Hooks.Concurrency == 0 {
		cfg.Hooks.Concurrency = DefaultHookConcurrency
	}
	if cfg.Hooks.EventBufferSize == 0 {
		cfg.Hooks.EventBufferSize = DefaultEventBufferSize
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if _, err := time.ParseDuration(cfg.Client.PollInterval); err != nil {
		return fmt.Errorf("client.poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Client.RequestTimeout); err != nil {
		return fmt.Errorf("client.request_timeout: %w", err)
	}
	if cfg.Client.CustomOption < 0 || cfg.Client.CustomOption > 254 {
		return fmt.Errorf("client.custom_option %d out of range (0-254)", cfg.Client.CustomOption)
	}
	if _, err := time.ParseDuration(cfg.Checks.DNSTimeout); err != nil {
		return fmt.Errorf("checks.dns_timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Checks.GatewayTimeout); err != nil {
		return fmt.Errorf("checks.gateway_timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Hooks.Timeout); err != nil {
		return fmt.Errorf("hooks.timeout: %w", err)
	}
	if cfg.Journal.MaxEntries < 0 {
		return fmt.Errorf("journal.max_entries must not be negative")
	}
	return nil
}

// ParseDuration parses a duration string, treating empty as zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// PollInterval returns the parsed poll interval.
func (cfg *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(cfg.Client.PollInterval)
	if err != nil {
		return DefaultPollInterval
	}
	return d
}

// RequestTimeout returns the parsed per-state negotiation timeout.
func (cfg *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(cfg.Client.RequestTimeout)
	if err != nil {
		return DefaultRequestTimeout
	}
	return d
}
