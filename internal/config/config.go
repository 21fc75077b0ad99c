package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with dots in the
// key replaced by underscores: store.sqlite_path -> CARCERT_STORE_SQLITE_PATH.
const EnvPrefix = "CARCERT"

// Config is the notifyd configuration.
type Config struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	Store     StoreConfig     `mapstructure:"store"`
	Push      PushConfig      `mapstructure:"push"`
	Demo      DemoConfig      `mapstructure:"demo"`
	Keyring   KeyringConfig   `mapstructure:"keyring"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// StoreConfig selects and configures the persistent key-value store.
type StoreConfig struct {
	Backend     string `mapstructure:"backend"` // sqlite, redis or memory
	SQLitePath  string `mapstructure:"sqlite_path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPass   string `mapstructure:"redis_password"`
	RedisDB     int    `mapstructure:"redis_db"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type PushConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	VAPIDPublicKey string        `mapstructure:"vapid_public_key"`
	Subscriber     string        `mapstructure:"subscriber"`
	TokenTimeout   time.Duration `mapstructure:"token_timeout"`
}

type DemoConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// KeyringConfig controls where secrets such as the VAPID private key live.
type KeyringConfig struct {
	Backend string `mapstructure:"backend"` // system, file or memory
	FileDir string `mapstructure:"file_dir"`
}

// RateLimitConfig bounds local notification scheduling per client.
type RateLimitConfig struct {
	Schedule int           `mapstructure:"schedule"`
	Window   time.Duration `mapstructure:"window"`
	// TrustForwarded keys clients by X-Forwarded-For. Enable only behind a
	// proxy that sets the header.
	TrustForwarded bool `mapstructure:"trust_forwarded"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.sqlite_path", "carcert.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "carcert")

	v.SetDefault("push.enabled", true)
	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.subscriber", "")
	v.SetDefault("push.token_timeout", 10*time.Second)

	v.SetDefault("demo.enabled", false)
	v.SetDefault("demo.interval", 5*time.Second)

	v.SetDefault("keyring.backend", "system")
	v.SetDefault("keyring.file_dir", "~/.config/carcert/credentials")

	v.SetDefault("rate_limit.schedule", 30)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.trust_forwarded", false)
}

// Load reads defaults, then the YAML file at path (if path is non-empty),
// then CARCERT_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("store.backend %q: want sqlite, redis or memory", c.Store.Backend))
	}
	switch c.Keyring.Backend {
	case "system", "file", "memory":
	default:
		errs = append(errs, fmt.Errorf("keyring.backend %q: want system, file or memory", c.Keyring.Backend))
	}
	if c.Push.TokenTimeout < 0 {
		errs = append(errs, errors.New("push.token_timeout must not be negative"))
	}
	if c.Demo.Enabled && c.Demo.Interval <= 0 {
		errs = append(errs, errors.New("demo.interval must be positive"))
	}
	if c.RateLimit.Schedule <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.schedule and rate_limit.window must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
