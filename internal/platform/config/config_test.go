package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AMLSTAT_ENV", "")
		t.Setenv("DATABASE_URL", "")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 5*time.Minute, cfg.Compliance.CacheTTL)
		assert.False(t, cfg.Logging.JSON)
		assert.Empty(t, cfg.Database.URL)
		assert.Equal(t, 5, cfg.Auth.LockoutAttempts)
		assert.Equal(t, 15*time.Minute, cfg.Auth.LockoutWindow)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("AMLSTAT_ADDR", ":9090")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("TOKEN_TTL", "30m")
		t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":9090", cfg.Server.Addr)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
		assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	})

	t.Run("production requires signing key", func(t *testing.T) {
		t.Setenv("AMLSTAT_ENV", "production")
		t.Setenv("JWT_SIGNING_KEY", "")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("bootstrap admin needs both fields", func(t *testing.T) {
		t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@regulator.test")
		t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "")
		_, err := FromEnv()
		require.Error(t, err)
	})
}
