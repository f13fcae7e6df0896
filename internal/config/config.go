package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Shortener ShortenerConfig
	Metadata  MetadataConfig
	Webhook   WebhookConfig
	Redis     RedisConfig
	App       AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" required:"true"`
	Port     string `envconfig:"DB_PORT" required:"true"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Name     string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ShortenerConfig holds configuration for the allocation engine.
type ShortenerConfig struct {
	// ServiceDomain is the domain this service serves short links from.
	// Destinations pointing back at it are rejected to avoid redirect loops.
	ServiceDomain string `envconfig:"SHORTENER_SERVICE_DOMAIN" required:"true"`
	CodeLength    int    `envconfig:"SHORTENER_CODE_LENGTH" default:"6"`
	MaxAttempts   int    `envconfig:"SHORTENER_MAX_ATTEMPTS" default:"10"`
}

// Validate validates the shortener configuration.
func (c *ShortenerConfig) Validate() error {
	if c.ServiceDomain == "" {
		return fmt.Errorf("service domain cannot be empty")
	}
	if c.CodeLength <= 0 {
		return fmt.Errorf("code length must be positive")
	}
	if c.CodeLength > 32 {
		return fmt.Errorf("code length must be at most 32, got %d", c.CodeLength)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	return nil
}

// MetadataConfig holds configuration for the page-title fetcher.
type MetadataConfig struct {
	FetchTimeout time.Duration `envconfig:"METADATA_FETCH_TIMEOUT" default:"5s"`
	MaxBodyBytes int64         `envconfig:"METADATA_MAX_BODY_BYTES" default:"65536"`
	UserAgent    string        `envconfig:"METADATA_USER_AGENT" default:"Mozilla/5.0 (compatible; shortlinker/1.0)"`
}

// Validate validates the metadata configuration.
func (c *MetadataConfig) Validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	return nil
}

// WebhookConfig holds configuration for the messaging-platform webhook.
type WebhookConfig struct {
	Enabled         bool          `envconfig:"WEBHOOK_ENABLED" default:"false"`
	ChannelSecret   string        `envconfig:"WEBHOOK_CHANNEL_SECRET"`
	ChannelToken    string        `envconfig:"WEBHOOK_CHANNEL_TOKEN"`
	SignatureHeader string        `envconfig:"WEBHOOK_SIGNATURE_HEADER" default:"X-Signature"`
	ReplyURL        string        `envconfig:"WEBHOOK_REPLY_URL"`
	ReplyTimeout    time.Duration `envconfig:"WEBHOOK_REPLY_TIMEOUT" default:"10s"`
	Workers         int           `envconfig:"WEBHOOK_WORKERS" default:"4"`
	QueueSize       int           `envconfig:"WEBHOOK_QUEUE_SIZE" default:"64"`
	TaskTimeout     time.Duration `envconfig:"WEBHOOK_TASK_TIMEOUT" default:"30s"`
}

// Validate validates the webhook configuration.
// Credentials are only required when the webhook is enabled.
func (c *WebhookConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ChannelSecret == "" {
		return fmt.Errorf("channel secret is required when webhook is enabled")
	}
	if c.ChannelToken == "" {
		return fmt.Errorf("channel token is required when webhook is enabled")
	}
	if c.ReplyURL == "" {
		return fmt.Errorf("reply URL is required when webhook is enabled")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	return nil
}

// RedisConfig holds configuration for the optional resolve cache.
// Leaving Addr empty disables the cache entirely.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"1h"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	if c.Addr != "" && c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when redis is enabled")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`  // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// Load loads configuration from environment variables only.
// (.env loading for dev happens in the app layer, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []struct {
		name     string
		target   any
		validate func() error
	}{
		{"Server", &cfg.Server, func() error { return cfg.Server.Validate() }},
		{"Database", &cfg.Database, func() error { return cfg.Database.Validate() }},
		{"Shortener", &cfg.Shortener, func() error { return cfg.Shortener.Validate() }},
		{"Metadata", &cfg.Metadata, func() error { return cfg.Metadata.Validate() }},
		{"Webhook", &cfg.Webhook, func() error { return cfg.Webhook.Validate() }},
		{"Redis", &cfg.Redis, func() error { return cfg.Redis.Validate() }},
		{"App", &cfg.App, func() error { return cfg.App.Validate() }},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.target); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
