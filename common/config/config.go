package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	SCM       SCMConfig
	Retry     RetryConfig
	Publisher PublisherConfig
	Policy    PolicyConfig
	Telemetry TelemetryConfig
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds settings for the in-flight hook dedup store
type RedisConfig struct {
	Enabled bool
	Addr    string
	DB      int
}

// SCMConfig holds repository-hosting adapter settings
type SCMConfig struct {
	// RepoDir is the root under which remote repositories are cloned,
	// laid out as <service>/<user>/<repo>.
	RepoDir string
	// NotifyLog is the operator-visible log of validation and ownership
	// messages tied to submitting repositories. Empty means stderr.
	NotifyLog string
}

// RetryConfig holds retry driver settings
type RetryConfig struct {
	PollInterval time.Duration
	MaxBackoff   time.Duration
}

// PublisherConfig holds action-log consumer settings
type PublisherConfig struct {
	CMSBaseURL   string
	CursorPath   string
	PollInterval time.Duration
}

// PolicyConfig holds release policy settings
type PolicyConfig struct {
	// Rules are CEL expressions over `manifest`; each must evaluate to
	// true for a release to be accepted. Separated by ';' in the env var.
	Rules []string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8001),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "registry"),
			User:        getEnv("POSTGRES_USER", "registry"),
			Password:    getEnv("POSTGRES_PASSWORD", "registry"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", true),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			DB:      getEnvInt("REDIS_DB", 0),
		},
		SCM: SCMConfig{
			RepoDir:   getEnv("REPO_DIR", "/tmp/plugin-repos"),
			NotifyLog: getEnv("NOTIFY_LOG", ""),
		},
		Retry: RetryConfig{
			PollInterval: getEnvDuration("RETRY_POLL_INTERVAL", 5*time.Second),
			MaxBackoff:   getEnvDuration("RETRY_MAX_BACKOFF", 120*time.Second),
		},
		Publisher: PublisherConfig{
			CMSBaseURL:   getEnv("CMS_BASE_URL", "http://localhost:8080"),
			CursorPath:   getEnv("PUBLISHER_CURSOR_PATH", "publisher.cursor"),
			PollInterval: getEnvDuration("PUBLISHER_POLL_INTERVAL", 5*time.Second),
		},
		Policy: PolicyConfig{
			Rules: getEnvSlice("POLICY_RULES", nil),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Retry.PollInterval <= 0 {
		return fmt.Errorf("retry poll interval must be positive")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ";")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
