package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultDatabase      = "tidings.db"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxBodyBytes  = 4 << 20 // 4 MiB
	DefaultConcurrency   = 4
	DefaultRetentionDays = 365
	DefaultUserAgent     = "tidings/1.0"
)

// Duration is a time.Duration that unmarshals from TOML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config carries the engine settings. CLI flags and environment variables
// override whatever the file says; the file overrides the defaults.
type Config struct {
	Database      string   `toml:"database"`
	Timeout       Duration `toml:"timeout"`
	MaxBodyBytes  int64    `toml:"max_body_bytes"`
	Concurrency   int      `toml:"concurrency"`
	RetentionDays int      `toml:"retention_days"`
	UserAgent     string   `toml:"user_agent"`
}

// Default returns a config with every field at its built-in value.
func Default() *Config {
	return &Config{
		Database:      DefaultDatabase,
		Timeout:       Duration(DefaultTimeout),
		MaxBodyBytes:  DefaultMaxBodyBytes,
		Concurrency:   DefaultConcurrency,
		RetentionDays: DefaultRetentionDays,
		UserAgent:     DefaultUserAgent,
	}
}

// Load reads a TOML config file over the defaults. A missing file is not an
// error; the defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Duration(DefaultTimeout)
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}

	return cfg, nil
}

// Retention is the configured entry retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
