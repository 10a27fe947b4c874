package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    8080,
			MetricsPort: 9091,
		},
		Upstream: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "crawler_ro",
			Name:     "news_content",
			SSLMode:  SSLModeDisable,
			MaxConns: 10,
			MinConns: 2,
		},
		Content: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "content_review",
			Name:     "true_content",
			SSLMode:  SSLModeDisable,
			MaxConns: 20,
			MinConns: 3,
		},
		Monitor: MonitorConfig{
			TickInterval: time.Minute,
			QuietPeriod:  10 * time.Minute,
			Countdown:    time.Minute,
		},
		Dedup: DedupConfig{PageSize: 30},
		Agent: AgentConfig{
			BaseURL: "https://agent-gateway.internal",
			Timeout: 5 * time.Minute,
		},
		Retry:   RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("invalid HTTP port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.HTTPPort = 0
		assert.ErrorContains(t, cfg.Validate(), "invalid HTTP port")
	})

	t.Run("missing upstream host", func(t *testing.T) {
		cfg := validConfig()
		cfg.Upstream.Host = ""
		assert.ErrorContains(t, cfg.Validate(), "upstream database host")
	})

	t.Run("missing content database name", func(t *testing.T) {
		cfg := validConfig()
		cfg.Content.Name = ""
		assert.ErrorContains(t, cfg.Validate(), "content database name")
	})

	t.Run("max_conns below min_conns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Content.MaxConns = 1
		assert.ErrorContains(t, cfg.Validate(), "max_conns")
	})

	t.Run("zero quiet period", func(t *testing.T) {
		cfg := validConfig()
		cfg.Monitor.QuietPeriod = 0
		assert.ErrorContains(t, cfg.Validate(), "quiet_period")
	})

	t.Run("zero countdown", func(t *testing.T) {
		cfg := validConfig()
		cfg.Monitor.Countdown = 0
		assert.ErrorContains(t, cfg.Validate(), "countdown")
	})

	t.Run("zero page size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Dedup.PageSize = 0
		assert.ErrorContains(t, cfg.Validate(), "page_size")
	})

	t.Run("missing agent base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Agent.BaseURL = ""
		assert.ErrorContains(t, cfg.Validate(), "base_url")
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "verbose"
		assert.ErrorContains(t, cfg.Validate(), "invalid log level")
	})
}

func TestDatabaseConfigDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:           "db.internal",
		Port:           5432,
		User:           "content_review",
		Password:       "p@ss word",
		Name:           "true_content",
		SSLMode:        SSLModeVerifyFull,
		ConnectTimeout: 10 * time.Second,
	}

	dsn := db.DSN()
	assert.Contains(t, dsn, "postgres://content_review:")
	assert.Contains(t, dsn, "@db.internal:5432/true_content")
	assert.Contains(t, dsn, "sslmode=verify-full")
	assert.Contains(t, dsn, "connect_timeout=10")
	// Password must be URL-escaped.
	assert.NotContains(t, dsn, "p@ss word")
}

func TestServerAddresses(t *testing.T) {
	srv := ServerConfig{Host: "127.0.0.1", HTTPPort: 8080, MetricsPort: 9091}
	assert.Equal(t, "127.0.0.1:8080", srv.HTTPAddress())
	assert.Equal(t, "127.0.0.1:9091", srv.MetricsAddress())
}

func TestLoadDefaults(t *testing.T) {
	// No config file in the test working directory, so Load exercises
	// defaults plus environment overrides only.
	t.Setenv("CONTENTREVIEW_AGENT_API_KEY", "test-key")
	t.Setenv("CONTENTREVIEW_UPSTREAM_SSL_MODE", SSLModeDisable)
	t.Setenv("CONTENTREVIEW_CONTENT_SSL_MODE", SSLModeDisable)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, time.Minute, cfg.Monitor.TickInterval)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.QuietPeriod)
	assert.Equal(t, time.Minute, cfg.Monitor.Countdown)
	assert.Equal(t, 30, cfg.Dedup.PageSize)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, int32(12), cfg.Content.AcquiredHighWater)
	assert.Equal(t, "test-key", cfg.Agent.APIKey)
	assert.Equal(t, SSLModeDisable, cfg.Upstream.SSLMode)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CONTENTREVIEW_MONITOR_QUIET_PERIOD", "20m")
	t.Setenv("CONTENTREVIEW_DEDUP_PAGE_SIZE", "15")
	t.Setenv("CONTENTREVIEW_AGENT_API_KEY", "override-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, cfg.Monitor.QuietPeriod)
	assert.Equal(t, 15, cfg.Dedup.PageSize)
	assert.Equal(t, "override-key", cfg.Agent.APIKey)
}
