// Package config centralizes the environment/flag-driven settings shared by
// the four services, per spec.md §6: DATABASE_URL, REDIS_URL, RABBITMQ,
// PORT, and the sites.json path. Process startup and env loading are named
// in spec.md §1 as an external collaborator; viper is the binding layer,
// the way the rest of the retrieved example pack's manifests declare it for
// exactly this purpose.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every setting a service may need. Not every field applies
// to every service; each cmd/ entrypoint reads only what it uses.
type Config struct {
	// DatabaseURL is the Postgres DSN backing internal/store.
	DatabaseURL string
	// RedisURL backs internal/cache (hand-off + seen-set).
	RedisURL string
	// BusURL backs internal/bus. spec.md §6 names this variable RABBITMQ;
	// it is repurposed here to hold a Redis DSN because the message bus is
	// implemented over Redis Streams rather than RabbitMQ (see DESIGN.md).
	BusURL string
	// Port is the search service's HTTP listen port.
	Port int
	// MetricsPort serves /metrics for any service.
	MetricsPort int
	// SitesFile is the path to sites.json, consumed by the crawler.
	SitesFile string
	// LogLevel is a RUST_LOG-style level name: debug, info, warn, error.
	LogLevel string
	// Concurrency bounds the crawler's per-pass fetch fan-out.
	Concurrency int
	// ModelProvider names the registered embedder/model.Model to construct.
	ModelProvider string
}

// Load reads configuration from the environment and, if cfgFile is
// non-empty, from a config file (YAML/JSON/TOML, detected by extension)
// bound via the --config flag each cmd/* entrypoint registers. File values
// are overridden by environment variables. Load uses its own private viper
// instance, so no other flags take part. PORT defaults to 8080 as spec.md
// §6 specifies; the remaining defaults are set by this package.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("context: %w", err)
		}
	}

	v.SetDefault("port", 8080)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("sites_file", "sites.json")
	v.SetDefault("log_level", "info")
	v.SetDefault("concurrency", 3)
	v.SetDefault("model_provider", "hashing")

	bind := map[string]string{
		"database_url": "DATABASE_URL",
		"redis_url":    "REDIS_URL",
		"bus_url":      "RABBITMQ",
		"port":         "PORT",
		"metrics_port": "FOXEYE_METRICS_PORT",
		"sites_file":   "FOXEYE_SITES_FILE",
		"log_level":    "FOXEYE_LOG_LEVEL",
		"concurrency":    "FOXEYE_CONCURRENCY",
		"model_provider": "FOXEYE_MODEL_PROVIDER",
	}
	for key, env := range bind {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("context: %w", err)
		}
	}

	cfg := Config{
		DatabaseURL: v.GetString("database_url"),
		RedisURL:    v.GetString("redis_url"),
		BusURL:      v.GetString("bus_url"),
		Port:        v.GetInt("port"),
		MetricsPort: v.GetInt("metrics_port"),
		SitesFile:   v.GetString("sites_file"),
		LogLevel:      v.GetString("log_level"),
		Concurrency:   v.GetInt("concurrency"),
		ModelProvider: v.GetString("model_provider"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("config: REDIS_URL is required")
	}
	if cfg.BusURL == "" {
		return Config{}, fmt.Errorf("config: RABBITMQ is required")
	}

	return cfg, nil
}

// ParseLogLevel maps a RUST_LOG-style level name to a slog.Level, defaulting
// to Info for an unrecognized value.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
