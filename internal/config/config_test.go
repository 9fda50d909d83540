package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "DATABASE_URL", "POSTGRES_USER", "POSTGRES_PASSWORD", "PG_HOST", "PG_PORT", "PG_DATABASE",
		"REDIS_ADDR", "REDIS_DB", "HISTORIAN_QUEUE_NAME", "HEARTBEAT_INTERVAL", "TOKEN_EXPIRE_TIME",
		"LOG_LEVEL", "HISTORIAN_BATCH_SIZE", "HISTORIAN_FLUSH_MS", "JWT_PRIVATE_KEY_PATH", "JWT_PUBLIC_KEY_PATH",
		"ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, 0, c.RedisDB)
	assert.Equal(t, "pokerdice_actions", c.QueueName)
	assert.Equal(t, 2*time.Second, c.Heartbeat)
	assert.Zero(t, c.TokenExpire)
	assert.Equal(t, logrus.InfoLevel, c.LogLevel)
	assert.Equal(t, 20, c.HistorianBatchSize)
	assert.Equal(t, 500*time.Millisecond, c.HistorianFlush)
	assert.Equal(t, "postgres://:@localhost:5432/pokerdice", c.DatabaseURL)
	assert.Equal(t, []string{"https://*", "http://*"}, c.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://x@y/z")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("HEARTBEAT_INTERVAL", "250ms")
	t.Setenv("TOKEN_EXPIRE_TIME", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HISTORIAN_BATCH_SIZE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://dice.example,https://admin.example")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "postgres://x@y/z", c.DatabaseURL)
	assert.Equal(t, 3, c.RedisDB)
	assert.Equal(t, 250*time.Millisecond, c.Heartbeat)
	assert.Equal(t, time.Hour, c.TokenExpire)
	assert.Equal(t, logrus.DebugLevel, c.LogLevel)
	assert.Equal(t, 20, c.HistorianBatchSize, "unparsable ints fall back to the default")
	assert.Equal(t, logrus.DebugLevel, c.Logger().GetLevel())
	assert.Equal(t, []string{"https://dice.example", "https://admin.example"}, c.AllowedOrigins)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HEARTBEAT_INTERVAL", "-1s")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("TOKEN_EXPIRE_TIME", "eventually")
	_, err = Load()
	assert.Error(t, err)
}
