// Package config loads disputedesk settings from .disputedesk/config.yaml and
// DISPUTEDESK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	dirName   = ".disputedesk"
	fileName  = "config.yaml"
	envPrefix = "DISPUTEDESK"
)

// Config is the full disputedesk configuration.
type Config struct {
	Actor     string          `mapstructure:"actor" yaml:"actor,omitempty"` // default --as for CLI commands
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc" yaml:"grpc"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Rate      RateConfig      `mapstructure:"rate" yaml:"rate"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	// Directory is a list rather than a map because viper lowercases map keys
	// and actor ids are case-sensitive.
	Directory []Actor `mapstructure:"directory" yaml:"directory,omitempty"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"` // sqlite path or postgres URL
}

type HTTPConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret,omitempty"`
	TokenTTL time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

type RateConfig struct {
	Burst     int `mapstructure:"burst" yaml:"burst"`
	PerSecond int `mapstructure:"per_second" yaml:"per_second"`
}

type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url,omitempty"`
	QueueSize  int    `mapstructure:"queue_size" yaml:"queue_size"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Stdout  bool `mapstructure:"stdout" yaml:"stdout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Actor is one identity directory entry.
type Actor struct {
	ID          string `mapstructure:"id" yaml:"id"`
	Role        string `mapstructure:"role" yaml:"role"`
	DisplayName string `mapstructure:"display_name" yaml:"display_name,omitempty"`
}

var defaults = map[string]any{
	"actor":               "",
	"store.driver":        DriverSQLite,
	"store.dsn":           "",
	"http.addr":           ":8080",
	"http.max_body_bytes": int64(1 << 20),
	"grpc.addr":           ":9090",
	"auth.secret":         "",
	"auth.token_ttl":      "24h",
	"rate.burst":          20,
	"rate.per_second":     10,
	"notify.webhook_url":  "",
	"notify.queue_size":   256,
	"telemetry.enabled":   false,
	"telemetry.stdout":    false,
	"log.level":           "info",
	"log.format":          "json",
}

// Path returns the config file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, dirName, fileName)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, _ := decode(newViper())
	return cfg
}

// LoadConfig reads .disputedesk/config.yaml from dir, applies DISPUTEDESK_*
// environment overrides (e.g. DISPUTEDESK_STORE_DRIVER) and validates the result.
// A missing file is not an error; defaults and environment still apply.
func LoadConfig(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(Path(dir))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	return &cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks enumerations and limits.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("config: store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q (want memory, sqlite or postgres)", c.Store.Driver)
	}
	if c.Rate.Burst <= 0 || c.Rate.PerSecond <= 0 {
		return errors.New("config: rate.burst and rate.per_second must be positive")
	}
	if c.Notify.QueueSize <= 0 {
		return errors.New("config: notify.queue_size must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("config: http.max_body_bytes must be positive")
	}
	seen := make(map[string]bool, len(c.Directory))
	for i, a := range c.Directory {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("config: directory[%d] has no id", i)
		}
		switch strings.ToLower(a.Role) {
		case "customer", "supplier", "admin":
		default:
			return fmt.Errorf("config: directory entry %s has unknown role %q", a.ID, a.Role)
		}
		if seen[a.ID] {
			return fmt.Errorf("config: directory entry %s is listed twice", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// SaveConfig writes cfg to .disputedesk/config.yaml under dir.
func SaveConfig(dir string, cfg *Config) error {
	cfgDir := filepath.Join(dir, dirName)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s dir: %w", dirName, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
