// cmd/historian is an asynchronous historian service that pops action records from
// a Redis queue and persists them to PostgreSQL in batches.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/pokerdice/internal/cache"
	"github.com/jason-s-yu/pokerdice/internal/config"
	"github.com/jason-s-yu/pokerdice/internal/database"
	"github.com/jason-s-yu/pokerdice/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	hs := historian.New(
		historian.NewRedisQueue(rdb, cfg.QueueName),
		database.NewActionWriter(pool),
		historian.Options{BatchSize: cfg.HistorianBatchSize, FlushDelay: cfg.HistorianFlush},
		logger,
	)
	logger.WithField("queue", cfg.QueueName).Info("pokerdice-historian service started")
	hs.Run(ctx)
	logger.WithField("persisted", hs.Flushed()).Info("historian shutdown complete")
}
