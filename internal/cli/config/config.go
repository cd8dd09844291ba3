package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Config represents the pim configuration
type Config struct {
	Backend  BackendConfig `mapstructure:"backend"`
	Local    LocalConfig   `mapstructure:"local"`
	Language string        `mapstructure:"language"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Server   ServerConfig  `mapstructure:"server"`
	Log      LogConfig     `mapstructure:"log"`
}

// BackendConfig selects where requests go
type BackendConfig struct {
	Mode       string        `mapstructure:"mode"`
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// LocalConfig points at the files the local engine is seeded from
type LocalConfig struct {
	Schema string `mapstructure:"schema"`
	Data   string `mapstructure:"data"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
	Prefix string        `mapstructure:"prefix"`
	Redis  RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis connection for the redis cache driver
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig configures "pim serve"
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// RateLimit is the number of requests a client may send per RateWindow; 0 disables it
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures logging
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Options controls where Load looks
type Options struct {
	// File is an explicit config file; when empty pim.yml or pim.yaml is searched in Paths
	File  string
	Paths []string
}

// Load loads the configuration from pim.yml or pim.yaml in the working directory
func Load() (*Config, error) {
	return LoadWithOptions(Options{Paths: []string{"."}})
}

// LoadWithOptions loads the configuration from an explicit file or search paths.
// Environment variables prefixed with PIM_ override file values, e.g.
// PIM_BACKEND_URL for backend.url.
func LoadWithOptions(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("pim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("pim")
		v.SetConfigType("yaml")
		for _, p := range opts.Paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.mode", ModeLocal)
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.max_retries", 2)
	v.SetDefault("local.schema", "schema.json")
	v.SetDefault("local.data", "")
	v.SetDefault("language", "")
	v.SetDefault("cache.driver", "none")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.prefix", "pim:")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_window", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Backend.Mode {
	case ModeLocal:
		if cfg.Local.Schema == "" {
			return fmt.Errorf("local.schema is required in %s mode", ModeLocal)
		}
	case ModeRemote:
		if cfg.Backend.URL == "" {
			return fmt.Errorf("backend.url is required in %s mode", ModeRemote)
		}
		u, err := url.Parse(cfg.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("backend.url must be an absolute URL, got: %s", cfg.Backend.URL)
		}
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got: %s", ModeLocal, ModeRemote, cfg.Backend.Mode)
	}

	switch cfg.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.driver must be none, memory or redis, got: %s", cfg.Cache.Driver)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got: %d", cfg.Server.RateLimit)
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateWindow <= 0 {
		return fmt.Errorf("server.rate_window must be positive when server.rate_limit is set")
	}
	return nil
}
