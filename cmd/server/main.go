package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/earnbuddy/backend/internal/config"
	"github.com/earnbuddy/backend/internal/entity"
	"github.com/earnbuddy/backend/internal/server"
	"github.com/earnbuddy/backend/pkg/database"
	"github.com/earnbuddy/backend/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "earnbuddy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(database.Options{
		URL:      cfg.DatabaseURL,
		Host:     cfg.DBHost,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		Port:     cfg.DBPort,
		Debug:    !cfg.IsProduction(),
	})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(entity.All()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, falling back to in-process cache and realtime", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	} else {
		log.Warn("REDIS_URL is not set, using in-process cache and realtime")
	}

	srv, err := server.NewServer(ctx, cfg, db, redisClient, log)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
