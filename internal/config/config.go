// Package config provides configuration management for the content review service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the content review service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Upstream contains connection settings for the crawler-owned store
	// this service only reads from.
	Upstream DatabaseConfig `mapstructure:"upstream"`
	// Content contains connection settings for the store this service owns
	// (prepared and reviewed records).
	Content DatabaseConfig `mapstructure:"content"`
	// Monitor contains stability monitor settings.
	Monitor MonitorConfig `mapstructure:"monitor"`
	// Dedup contains dedup pipeline stage settings.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Agent contains remote agent gateway settings.
	Agent AgentConfig `mapstructure:"agent"`
	// Retry contains datastore retry settings.
	Retry RetryConfig `mapstructure:"retry"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Manual
	// pipeline triggers run synchronously on the request, so this must cover
	// a full dedup+review pass.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// AcquiredHighWater is the in-use connection count at which the pool
	// watchdog performs an emergency reset. Zero disables the reset.
	AcquiredHighWater int32 `mapstructure:"acquired_high_water"`
	// WatchdogInterval is how often the pool watchdog inspects pool stats.
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
	// MigrationPath is the path to migration files (relative or absolute).
	// Only meaningful for the content store; the upstream store is not migrated.
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// MonitorConfig holds stability monitor settings.
type MonitorConfig struct {
	// TickInterval is how often the monitor samples the upstream store.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// QuietPeriod is the minimum duration without row-count growth before a
	// workflow becomes a processing candidate.
	QuietPeriod time.Duration `mapstructure:"quiet_period"`
	// Countdown is the buffer after the quiet period during which renewed
	// growth still aborts processing. Overridable per start request.
	Countdown time.Duration `mapstructure:"countdown"`
	// AutoStart starts monitoring at boot rather than waiting for an API call.
	AutoStart bool `mapstructure:"auto_start"`
	// HeartbeatStaleAfter is how old the loop heartbeat may be before status
	// reports the monitor as unhealthy.
	HeartbeatStaleAfter time.Duration `mapstructure:"heartbeat_stale_after"`
}

// DedupConfig holds dedup pipeline stage settings.
type DedupConfig struct {
	// PageSize is the maximum number of records sent to the similarity agent
	// per call. Duplicates split across pages are not compared.
	PageSize int `mapstructure:"page_size"`
}

// AgentConfig holds remote agent gateway settings.
type AgentConfig struct {
	// BaseURL is the agent gateway base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey authenticates against the gateway (loaded from
	// CONTENTREVIEW_AGENT_API_KEY, never from config files).
	APIKey string `mapstructure:"-"`
	// SimilarityAppID is the gateway application ID of the dedup agent.
	SimilarityAppID string `mapstructure:"similarity_app_id"`
	// ReviewAppID is the gateway application ID of the review agent.
	ReviewAppID string `mapstructure:"review_app_id"`
	// Timeout is the per-call deadline. Agent calls are expensive and slow;
	// keep this generous.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum agent calls per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Burst is the rate limiter burst size.
	Burst int `mapstructure:"burst"`
}

// RetryConfig holds datastore retry settings. Agent calls are not retried.
type RetryConfig struct {
	// MaxAttempts is the total number of tries for a datastore operation.
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CONTENTREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/content-review-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets are loaded exclusively from environment variables. The field
	// uses mapstructure:"-" to prevent loading from config files.
	cfg.Agent.APIKey = os.Getenv("CONTENTREVIEW_AGENT_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Upstream store defaults
	v.SetDefault("upstream.host", "localhost")
	v.SetDefault("upstream.port", 5432)
	v.SetDefault("upstream.user", "crawler_ro")
	v.SetDefault("upstream.password", "")
	v.SetDefault("upstream.name", "news_content")
	v.SetDefault("upstream.ssl_mode", SSLModeRequire)
	v.SetDefault("upstream.max_conns", 10)
	v.SetDefault("upstream.min_conns", 2)
	v.SetDefault("upstream.max_conn_lifetime", "1h")
	v.SetDefault("upstream.max_conn_idle_time", "30m")
	v.SetDefault("upstream.health_check_period", "30s")
	v.SetDefault("upstream.connect_timeout", "10s")
	v.SetDefault("upstream.acquired_high_water", 8)
	v.SetDefault("upstream.watchdog_interval", "10m")

	// Content store defaults
	v.SetDefault("content.host", "localhost")
	v.SetDefault("content.port", 5432)
	v.SetDefault("content.user", "content_review")
	v.SetDefault("content.password", "")
	v.SetDefault("content.name", "true_content")
	v.SetDefault("content.ssl_mode", SSLModeRequire)
	v.SetDefault("content.max_conns", 20)
	v.SetDefault("content.min_conns", 3)
	v.SetDefault("content.max_conn_lifetime", "1h")
	v.SetDefault("content.max_conn_idle_time", "30m")
	v.SetDefault("content.health_check_period", "30s")
	v.SetDefault("content.connect_timeout", "10s")
	v.SetDefault("content.acquired_high_water", 12)
	v.SetDefault("content.watchdog_interval", "10m")
	v.SetDefault("content.migration_path", "migrations")
	v.SetDefault("content.migration_auto_run", false)

	// Monitor defaults
	v.SetDefault("monitor.tick_interval", "60s")
	v.SetDefault("monitor.quiet_period", "10m")
	v.SetDefault("monitor.countdown", "1m")
	v.SetDefault("monitor.auto_start", false)
	v.SetDefault("monitor.heartbeat_stale_after", "5m")

	// Dedup defaults
	v.SetDefault("dedup.page_size", 30)

	// Agent defaults. The API key is loaded exclusively from the environment.
	v.SetDefault("agent.base_url", "https://agent-gateway.internal")
	v.SetDefault("agent.similarity_app_id", "")
	v.SetDefault("agent.review_app_id", "")
	v.SetDefault("agent.timeout", "5m")
	v.SetDefault("agent.rate_limit", 1.0)
	v.SetDefault("agent.burst", 1)

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "2s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	if err := validateDatabase("upstream", &c.Upstream); err != nil {
		return err
	}
	if err := validateDatabase("content", &c.Content); err != nil {
		return err
	}

	if c.Monitor.TickInterval <= 0 {
		return fmt.Errorf("monitor tick_interval must be positive")
	}
	if c.Monitor.QuietPeriod <= 0 {
		return fmt.Errorf("monitor quiet_period must be positive")
	}
	if c.Monitor.Countdown <= 0 {
		return fmt.Errorf("monitor countdown must be positive")
	}

	if c.Dedup.PageSize <= 0 {
		return fmt.Errorf("dedup page_size must be positive")
	}

	if c.Agent.BaseURL == "" {
		return fmt.Errorf("agent base_url is required")
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent timeout must be positive")
	}

	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// validateDatabase validates one datastore's connection settings.
func validateDatabase(name string, db *DatabaseConfig) error {
	if db.Host == "" {
		return fmt.Errorf("%s database host is required", name)
	}
	if db.Port <= 0 || db.Port > 65535 {
		return fmt.Errorf("invalid %s database port: %d", name, db.Port)
	}
	if db.Name == "" {
		return fmt.Errorf("%s database name is required", name)
	}
	if db.MaxConns < db.MinConns {
		return fmt.Errorf("%s max_conns (%d) must be >= min_conns (%d)", name, db.MaxConns, db.MinConns)
	}
	return nil
}
