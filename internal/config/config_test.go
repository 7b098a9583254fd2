package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"POSTGRES_DSN", "MONGO_URI", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW_SECONDS", "APP_PORT", "REDIS_DB"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Empty(t, cfg.Mongo.URI)
	assert.Equal(t, "helpdesk", cfg.Mongo.Database)
	assert.Equal(t, "notifications", cfg.Notification.RedisChannel)
	assert.Equal(t, "ticket-events", cfg.Notification.EventsChannel)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.True(t, cfg.RateLimit.Enabled())
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "0")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "5")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.RateLimit.Enabled())
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Window())
	assert.False(t, cfg.Postgres.RunMigrations)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoad_RejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "primary")
	_, err := Load()
	assert.Error(t, err)
}
