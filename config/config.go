// Package config loads the gateway's YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings
// like "10s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// NodeConfig points at the chain access node.
type NodeConfig struct {
	URL          string   `yaml:"url"`
	AuthToken    string   `yaml:"auth_token"`
	Timeout      Duration `yaml:"timeout"`
	PollInterval Duration `yaml:"poll_interval"`
}

// StatsConfig points at the statistics API and its local cache.
type StatsConfig struct {
	BaseURL      string   `yaml:"base_url"`
	DatabasePath string   `yaml:"database"`
	TTL          Duration `yaml:"ttl"`
}

// ExchangeConfig tunes the transaction orchestrator.
type ExchangeConfig struct {
	SettleDelay  Duration `yaml:"settle_delay"`
	WatchTimeout Duration `yaml:"watch_timeout"`
}

// RateLimit configures one route class.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// TelemetryConfig toggles the OTLP exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Config is the full gateway configuration.
type Config struct {
	ListenAddress string               `yaml:"listen"`
	Environment   string               `yaml:"environment"`
	Node          NodeConfig           `yaml:"node"`
	Stats         StatsConfig          `yaml:"stats"`
	Exchange      ExchangeConfig       `yaml:"exchange"`
	RateLimits    map[string]RateLimit `yaml:"rate_limits"`
	Telemetry     TelemetryConfig      `yaml:"telemetry"`
}

// Load reads and validates the configuration file. The node auth token may be
// supplied via MOMENTSWAP_NODE_TOKEN instead of the file so secrets stay out
// of version control.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if token := strings.TrimSpace(os.Getenv("MOMENTSWAP_NODE_TOKEN")); token != "" {
		cfg.Node.AuthToken = token
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress: ":8551",
		Node: NodeConfig{
			Timeout:      Duration{10 * time.Second},
			PollInterval: Duration{2 * time.Second},
		},
		Stats: StatsConfig{
			DatabasePath: "momentswap-stats.db",
			TTL:          Duration{time.Minute},
		},
		Exchange: ExchangeConfig{
			SettleDelay:  Duration{10 * time.Second},
			WatchTimeout: Duration{2 * time.Minute},
		},
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("listen address required")
	}
	if strings.TrimSpace(c.Node.URL) == "" {
		return fmt.Errorf("node url required")
	}
	if c.Node.PollInterval.Duration <= 0 {
		return fmt.Errorf("node poll_interval must be positive")
	}
	if c.Exchange.SettleDelay.Duration < 0 {
		return fmt.Errorf("exchange settle_delay must not be negative")
	}
	for key, limit := range c.RateLimits {
		if limit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit %q: requests_per_minute must be positive", key)
		}
	}
	return nil
}
