package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/tensai-22/penal-sub001/internal/urgency"
)

// ConfigPathEnv names the optional YAML file loaded before environment variables
const ConfigPathEnv = "CASEDESK_CONFIG_PATH"

// Config holds application configuration
type Config struct {
	ServerPort  string `yaml:"server_port"`
	FrontendURL string `yaml:"frontend_url"`
	EnableHSTS  bool   `yaml:"enable_hsts"`

	BackendURL     string        `yaml:"backend_url"`
	BackendAPIKey  string        `yaml:"backend_api_key"`
	BackendTimeout time.Duration `yaml:"backend_timeout"`
	BackendRetries int           `yaml:"backend_retries"`

	DatabaseURL      string        `yaml:"database_url"`
	RedisURL         string        `yaml:"redis_url"`
	RabbitMQURL      string        `yaml:"rabbitmq_url"`
	RabbitMQPrefetch int           `yaml:"rabbitmq_prefetch"`
	DLQRetention     time.Duration `yaml:"dlq_retention"`

	CaseCacheTTL        time.Duration `yaml:"case_cache_ttl"`
	UrgencyTimezone     string        `yaml:"urgency_timezone"`
	UrgencySortStrategy string        `yaml:"urgency_sort_strategy"`
	SweepTimes          []string      `yaml:"sweep_times"`
	RateLimit           string        `yaml:"rate_limit"`

	WorkerDebugMode bool   `yaml:"worker_debug_mode"`
	ServerDebugMode bool   `yaml:"server_debug_mode"`
	OTELEnabled     bool   `yaml:"otel_enabled"`
	OTELEndpoint    string `yaml:"otel_endpoint"`
}

// Defaults returns the configuration used when neither a file nor the environment sets a value
func Defaults() *Config {
	return &Config{
		ServerPort:          "8080",
		FrontendURL:         "http://localhost:3000",
		BackendTimeout:      15 * time.Second,
		BackendRetries:      3,
		RedisURL:            "redis://localhost:6379/0",
		RabbitMQPrefetch:    1,
		DLQRetention:        7 * 24 * time.Hour,
		CaseCacheTTL:        30 * time.Second,
		UrgencyTimezone:     "America/Lima",
		UrgencySortStrategy: string(urgency.SortByDiff),
		SweepTimes:          []string{"08:00", "14:00"},
		RateLimit:           "10-S",
	}
}

// Load loads configuration from the optional YAML file named by CASEDESK_CONFIG_PATH,
// then from environment variables, which take precedence
func Load() (*Config, error) {
	cfg, err := LoadUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without Validate, for tools that need only part of the settings
func LoadUnvalidated() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.FrontendURL = getEnv("FRONTEND_URL", cfg.FrontendURL)
	cfg.EnableHSTS = getEnvBool("ENABLE_HSTS", cfg.EnableHSTS)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.BackendAPIKey = getEnv("BACKEND_API_KEY", cfg.BackendAPIKey)
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", cfg.BackendTimeout)
	cfg.BackendRetries = getEnvInt("BACKEND_RETRIES", cfg.BackendRetries)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RabbitMQPrefetch = getEnvInt("RABBITMQ_PREFETCH", cfg.RabbitMQPrefetch)
	cfg.DLQRetention = getEnvDuration("DLQ_RETENTION", cfg.DLQRetention)
	cfg.CaseCacheTTL = getEnvDuration("CASE_CACHE_TTL", cfg.CaseCacheTTL)
	cfg.UrgencyTimezone = getEnv("URGENCY_TIMEZONE", cfg.UrgencyTimezone)
	cfg.UrgencySortStrategy = getEnv("URGENCY_SORT_STRATEGY", cfg.UrgencySortStrategy)
	cfg.SweepTimes = getEnvList("SWEEP_TIMES", cfg.SweepTimes)
	cfg.RateLimit = getEnv("RATE_LIMIT", cfg.RateLimit)
	cfg.WorkerDebugMode = getEnvBool("WORKER_DEBUG_MODE", cfg.WorkerDebugMode)
	cfg.ServerDebugMode = getEnvBool("SERVER_DEBUG_MODE", cfg.ServerDebugMode)
	cfg.OTELEnabled = getEnvBool("OTEL_ENABLED", cfg.OTELEnabled)
	cfg.OTELEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTELEndpoint)
	return cfg, nil
}

// Validate checks required settings and value formats
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL is required for overdue sweeps")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.SortStrategy(); err != nil {
		return fmt.Errorf("URGENCY_SORT_STRATEGY: %w", err)
	}
	for _, s := range c.SweepTimes {
		if _, err := time.Parse("15:04", s); err != nil {
			return fmt.Errorf("invalid sweep time %q, expected HH:MM", s)
		}
	}
	if c.CaseCacheTTL < 0 {
		return fmt.Errorf("CASE_CACHE_TTL cannot be negative")
	}
	return nil
}

// Location loads the time zone deadlines are evaluated in
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.UrgencyTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid URGENCY_TIMEZONE %q: %w", c.UrgencyTimezone, err)
	}
	return loc, nil
}

// SortStrategy parses the configured countdown sort strategy
func (c *Config) SortStrategy() (urgency.SortStrategy, error) {
	return urgency.ParseSortStrategy(c.UrgencySortStrategy)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
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
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
