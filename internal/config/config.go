// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/pokerdice/internal/auth"
	"github.com/jason-s-yu/pokerdice/internal/cache"
	"github.com/jason-s-yu/pokerdice/internal/database"
	"github.com/sirupsen/logrus"
)

// Config holds every environment-driven setting for the binaries.
type Config struct {
	Port        string
	DatabaseURL string

	RedisAddr string
	RedisDB   int
	QueueName string

	Heartbeat   time.Duration
	TokenExpire time.Duration
	LogLevel    logrus.Level

	// Key files for session tokens; empty means generate a key pair at startup.
	PrivateKeyPath string
	PublicKeyPath  string

	HistorianBatchSize int
	HistorianFlush     time.Duration

	// AllowedOrigins feeds CORS and the websocket origin check.
	AllowedOrigins []string
}

// Load reads the environment. Call after godotenv/autoload has populated it.
func Load() (*Config, error) {
	c := &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		QueueName:          getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
		PrivateKeyPath:     os.Getenv("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:      os.Getenv("JWT_PUBLIC_KEY_PATH"),
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		AllowedOrigins:     []string{"https://*", "http://*"},
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = database.ConnString(
			os.Getenv("POSTGRES_USER"),
			os.Getenv("POSTGRES_PASSWORD"),
			getEnv("PG_HOST", "localhost"),
			getEnv("PG_PORT", "5432"),
			getEnv("PG_DATABASE", "pokerdice"),
		)
	}

	var err error
	if c.Heartbeat, err = time.ParseDuration(getEnv("HEARTBEAT_INTERVAL", "2s")); err != nil || c.Heartbeat <= 0 {
		return nil, fmt.Errorf("invalid HEARTBEAT_INTERVAL %q", os.Getenv("HEARTBEAT_INTERVAL"))
	}
	if c.TokenExpire, err = auth.ParseTokenExpireTime(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		return nil, err
	}
	if c.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.HistorianBatchSize <= 0 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", c.HistorianBatchSize)
	}
	return c, nil
}

// Logger builds a logrus logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
