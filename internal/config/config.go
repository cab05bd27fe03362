// Package config loads the configuration of the backend from the environment
// and an optional app.env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/models"
	"github.com/spf13/viper"
)

var ErrInvalid = errors.New("invalid configuration")

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver string
	DSN    string
}

type CacheConfig struct {
	Backend    string
	TTL        time.Duration
	RedisAddr  string
	BadgerPath string // Empty keeps the cache in memory
}

type AuthConfig struct {
	Secret string
}

type GroupConfig struct {
	PruneAfter    time.Duration
	PruneInterval time.Duration
}

type Config struct {
	Environment      string
	HTTP             HTTPConfig
	APIURL           *url.URL
	DB               DBConfig
	Cache            CacheConfig
	Auth             AuthConfig
	Groups           GroupConfig
	LogFormat        string
	TracingStdout    bool
	CORSAllowOrigins []string
	EnablePprof      bool
}

// Addr is the address the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// Development reports if the backend runs in a development environment.
func (c Config) Development() bool {
	return c.Environment == "development"
}

// Load reads the configuration. Environment variables take precedence over
// values from the app.env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("DB_DRIVER", models.DriverSQLite)
	v.SetDefault("DB_DSN", "data/gorm.db")
	v.SetDefault("CACHE_BACKEND", cache.BackendBadger)
	v.SetDefault("CACHE_TTL", "10m")
	v.SetDefault("GROUP_PRUNE_AFTER", "5m")
	v.SetDefault("GROUP_PRUNE_INTERVAL", "1m")

	// A missing file is fine, everything can be set in the environment
	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	apiURL, err := url.Parse(v.GetString("API_URL"))
	if err != nil {
		return nil, fmt.Errorf("%w: API_URL: %w", ErrInvalid, err)
	}

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		APIURL: apiURL,
		DB: DBConfig{
			Driver: v.GetString("DB_DRIVER"),
			DSN:    v.GetString("DB_DSN"),
		},
		Cache: CacheConfig{
			Backend:    v.GetString("CACHE_BACKEND"),
			TTL:        v.GetDuration("CACHE_TTL"),
			RedisAddr:  v.GetString("REDIS_ADDR"),
			BadgerPath: v.GetString("BADGER_PATH"),
		},
		Auth: AuthConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		Groups: GroupConfig{
			PruneAfter:    v.GetDuration("GROUP_PRUNE_AFTER"),
			PruneInterval: v.GetDuration("GROUP_PRUNE_INTERVAL"),
		},
		LogFormat:        v.GetString("LOG_FORMAT"),
		TracingStdout:    v.GetBool("TRACING_STDOUT"),
		CORSAllowOrigins: strings.Fields(v.GetString("CORS_ALLOW_ORIGINS")),
		EnablePprof:      v.GetBool("ENABLE_PPROF"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.Driver != models.DriverSQLite && cfg.DB.Driver != models.DriverPostgres {
		return fmt.Errorf("%w: DB_DRIVER must be one of %s, %s", ErrInvalid, models.DriverSQLite, models.DriverPostgres)
	}

	if cfg.DB.DSN == "" {
		return fmt.Errorf("%w: DB_DSN is required", ErrInvalid)
	}

	if cfg.Cache.Backend == cache.BackendRedis && cfg.Cache.RedisAddr == "" {
		return fmt.Errorf("%w: REDIS_ADDR is required for the redis cache", ErrInvalid)
	}

	if cfg.Auth.Secret == "" && !cfg.Development() {
		return fmt.Errorf("%w: JWT_SECRET is required outside of development", ErrInvalid)
	}

	if cfg.Groups.PruneInterval <= 0 {
		return fmt.Errorf("%w: GROUP_PRUNE_INTERVAL must be positive", ErrInvalid)
	}

	return nil
}
