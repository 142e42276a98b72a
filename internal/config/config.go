package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Mongo     MongoConfig
	Provider  ProviderConfig
	Analytics AnalyticsConfig
	Refresh   RefreshConfig
	LogLevel  string
}

type ServerConfig struct {
	Port string
}

type PostgresConfig struct {
	DSN string
}

type MongoConfig struct {
	URI      string
	Database string
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type AnalyticsConfig struct {
	TTL           time.Duration
	DedupCapacity int
}

type RefreshConfig struct {
	Enabled  bool
	Schedule string
	// Delay is the pause after each pair that cost a provider call.
	Delay time.Duration
}

// Load reads the configuration from the environment, after loading a .env
// file when one exists.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	providerTimeout, err := time.ParseDuration(getEnv("PROVIDER_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	ttl, err := time.ParseDuration(getEnv("ANALYTICS_TTL", "72h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYTICS_TTL: %w", err)
	}
	refreshDelay, err := time.ParseDuration(getEnv("REFRESH_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_DELAY: %w", err)
	}
	dedupCapacity, err := strconv.Atoi(getEnv("SYNC_DEDUP_CAPACITY", "1024"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_DEDUP_CAPACITY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Postgres: PostgresConfig{
			DSN: getEnv("POSTGRES_DSN", ""),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "dashboard"),
		},
		Provider: ProviderConfig{
			BaseURL: getEnv("PROVIDER_BASE_URL", ""),
			APIKey:  getEnv("PROVIDER_API_KEY", ""),
			Timeout: providerTimeout,
		},
		Analytics: AnalyticsConfig{
			TTL:           ttl,
			DedupCapacity: dedupCapacity,
		},
		Refresh: RefreshConfig{
			Enabled:  getBoolEnv("REFRESH_ENABLED", true),
			Schedule: getEnv("REFRESH_SCHEDULE", "0 */6 * * *"),
			Delay:    refreshDelay,
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	return v.Errors{
		"PORT":                v.Validate(c.Server.Port, v.Required, is.Port),
		"POSTGRES_DSN":        v.Validate(c.Postgres.DSN, v.Required),
		"MONGO_URI":           v.Validate(c.Mongo.URI, v.Required),
		"MONGO_DATABASE":      v.Validate(c.Mongo.Database, v.Required),
		"PROVIDER_BASE_URL":   v.Validate(c.Provider.BaseURL, v.Required, is.URL),
		"PROVIDER_API_KEY":    v.Validate(c.Provider.APIKey, v.Required),
		"PROVIDER_TIMEOUT":    v.Validate(c.Provider.Timeout, v.Required, v.Min(time.Second)),
		"ANALYTICS_TTL":       v.Validate(c.Analytics.TTL, v.Required, v.Min(time.Minute)),
		"SYNC_DEDUP_CAPACITY": v.Validate(c.Analytics.DedupCapacity, v.Required, v.Min(1)),
		"REFRESH_SCHEDULE":    v.Validate(c.Refresh.Schedule, v.When(c.Refresh.Enabled, v.Required, v.By(cronSpec))),
		"REFRESH_DELAY":       v.Validate(c.Refresh.Delay, v.Min(time.Duration(0))),
		"LOG_LEVEL":           v.Validate(c.LogLevel, v.In("debug", "info", "warn", "error")),
	}.Filter()
}

func cronSpec(value interface{}) error {
	spec, _ := value.(string)
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("must be a standard cron expression: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}
