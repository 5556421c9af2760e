package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all host configuration, loaded from PLUGBOARD_*
// environment variables.
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Plugins       PluginsConfig
	Auth          AuthConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BaseURL is the externally visible address, used in SSO redirect
	// and callback URLs.
	BaseURL string
}

// StoreConfig selects and configures the entity store backend.
type StoreConfig struct {
	Type        string // "memory" or "postgres"
	PostgresURL string
}

// PluginsConfig controls extension discovery and recomposition.
type PluginsConfig struct {
	// Root is the directory whose "plugins" sub-directory is walked at
	// boot.
	Root string

	// Watch enables filesystem watching of the extension tree; changes
	// trigger rediscovery and an atomic registry swap.
	Watch         bool
	WatchDebounce time.Duration

	// RecomposeSchedule is an optional cron expression for periodic
	// recomposition, picking up role and group changes made in the
	// store. Empty disables the schedule.
	RecomposeSchedule string
}

// AuthConfig holds identity settings.
type AuthConfig struct {
	// SuperAdminID is the id of the always-privileged account.
	SuperAdminID string

	// SSOConfigFile points at the YAML file declaring identity-provider
	// strategies. Empty means local accounts only.
	SSOConfigFile string
}

// RedisConfig configures the pub/sub client used for user-deletion
// fan-out. An empty URL disables Redis.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("PLUGBOARD_HOST", "0.0.0.0"),
			Port:            getEnv("PLUGBOARD_PORT", "8080"),
			ReadTimeout:     getEnvDuration("PLUGBOARD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("PLUGBOARD_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("PLUGBOARD_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("PLUGBOARD_SHUTDOWN_TIMEOUT", 30*time.Second),
			BaseURL:         getEnv("PLUGBOARD_BASE_URL", "http://localhost:8080"),
		},
		Store: StoreConfig{
			Type:        getEnv("PLUGBOARD_STORE_TYPE", "memory"),
			PostgresURL: getEnv("PLUGBOARD_POSTGRES_URL", ""),
		},
		Plugins: PluginsConfig{
			Root:              getEnv("PLUGBOARD_PLUGINS_ROOT", "."),
			Watch:             getEnvBool("PLUGBOARD_PLUGINS_WATCH", false),
			WatchDebounce:     getEnvDuration("PLUGBOARD_PLUGINS_WATCH_DEBOUNCE", 2*time.Second),
			RecomposeSchedule: getEnv("PLUGBOARD_RECOMPOSE_SCHEDULE", ""),
		},
		Auth: AuthConfig{
			SuperAdminID:  getEnv("PLUGBOARD_SUPER_ADMIN_ID", "admin"),
			SSOConfigFile: getEnv("PLUGBOARD_SSO_CONFIG", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("PLUGBOARD_REDIS_URL", ""),
			Password: getEnv("PLUGBOARD_REDIS_PASSWORD", ""),
			DB:       getEnvInt("PLUGBOARD_REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:           getEnv("PLUGBOARD_LOG_LEVEL", "info"),
			MetricsEnabled:     getEnvBool("PLUGBOARD_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("PLUGBOARD_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("PLUGBOARD_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("PLUGBOARD_OTEL_SERVICE_NAME", "plugboard"),
			OTelServiceVersion: getEnv("PLUGBOARD_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("PLUGBOARD_OTEL_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Store.Type {
	case "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres store")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be memory or postgres)", c.Store.Type)
	}

	if c.Plugins.Root == "" {
		return fmt.Errorf("plugins root is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
