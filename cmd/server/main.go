// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/pokerdice/internal/auth"
	"github.com/jason-s-yu/pokerdice/internal/cache"
	"github.com/jason-s-yu/pokerdice/internal/config"
	"github.com/jason-s-yu/pokerdice/internal/database"
	"github.com/jason-s-yu/pokerdice/internal/events"
	"github.com/jason-s-yu/pokerdice/internal/game"
	"github.com/jason-s-yu/pokerdice/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	demo := flag.Int("demo", 0, "seed a demo lobby with this many players and print their tokens")
	flag.Parse()

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

	var sessions *auth.Sessions
	if cfg.PrivateKeyPath != "" {
		sessions, err = auth.NewFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpire)
	} else {
		logger.Warn("JWT_PRIVATE_KEY_PATH not set, generating an ephemeral signing key")
		sessions, err = auth.New(cfg.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("sessions: %v", err)
	}

	registry := events.NewRegistry(logger, cfg.Heartbeat)
	go registry.Run(ctx)
	defer registry.Close()

	svc := game.NewService(database.NewStore(pool), nil, registry, logger)

	// The action log is best effort: the server runs without Redis.
	if rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.Warnf("action log disabled: %v", err)
	} else {
		defer rdb.Close()
		svc.Actions = cache.NewPublisher(rdb, cfg.QueueName)
		logger.WithField("queue", cfg.QueueName).Info("publishing actions to historian queue")
	}

	if *demo > 0 {
		if err := seedDemo(ctx, logger, pool, sessions, *demo); err != nil {
			logger.Fatalf("demo: %v", err)
		}
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(&handlers.API{
			Games:          svc,
			Registry:       registry,
			Sessions:       sessions,
			Logger:         logger,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Hijacked websockets are not tracked by Shutdown; closing the registry ends them.
		registry.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	logger.Info("server stopped")
}
