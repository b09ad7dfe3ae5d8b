package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/cfaccess/config"
	"go.uber.org/zap/zaptest"
)

func TestNewDependencies(t *testing.T) {
	t.Run("initializes without account database", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		require.NoError(t, err)
		require.NotNil(t, deps)

		// Verify infrastructure
		assert.NotNil(t, deps.Config)
		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.RepoFactory)
		assert.Nil(t, deps.Accounts)

		// Verify access pipeline
		assert.NotNil(t, deps.KeySets)
		assert.NotNil(t, deps.Authenticator)
		assert.NotNil(t, deps.AccessMiddleware)

		// Verify handlers
		assert.NotNil(t, deps.HealthHandler)
		assert.NotNil(t, deps.SessionHandler)
		assert.NotNil(t, deps.SiteHandler)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("database connection failure", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Database = config.DatabaseConfig{
			Host:     "invalid-host-that-does-not-exist",
			Port:     5432,
			User:     "cfaccess",
			Database: "cfaccess_test",
			SSLMode:  "disable",
		}
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize database")
	})

	t.Run("invalid upstream", func(t *testing.T) {
		ctx := context.Background()
		cfg := testConfig()
		cfg.UpstreamURL = "localhost:3000"
		logger := zaptest.NewLogger(t)

		deps, err := NewDependencies(ctx, cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize handlers")
	})
}

func TestDependenciesClose(t *testing.T) {
	ctx := context.Background()
	deps, err := NewDependencies(ctx, testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NoError(t, deps.Close(ctx))
	// Second close should not fail
	assert.NoError(t, deps.Close(ctx))
}

// Test helpers

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Access: config.AccessConfig{
			AuthURL:            "https://team.cloudflareaccess.com",
			Audience:           "aud-tag",
			Contexts:           "web",
			Obfuscate:          true,
			SiteContext:        "web",
			HTTPTimeout:        time.Second,
			KeySetTTL:          10 * time.Minute,
			NegativeTTL:        30 * time.Second,
			MinRefreshInterval: 30 * time.Second,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}
