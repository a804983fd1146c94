package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bitrag/configs"
	"bitrag/internal/faulttolerance"
	"bitrag/internal/handler"
	"bitrag/internal/router"
	"bitrag/internal/service"
	"bitrag/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	retryer := faulttolerance.NewRetryer(faulttolerance.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       time.Duration(cfg.Retry.DelaySeconds) * time.Second,
		Name:        "postgres-connect",
	}, logger)

	var db *gorm.DB
	if err := retryer.Execute(context.Background(), func() error {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		return err
	}); err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	marketService := service.NewMarketService(storage.NewGormStore(db), cfg.Snapshot.Path)
	marketHandler := handler.NewMarketHandler(marketService)

	r := router.NewRouter(&router.Config{MarketHandler: marketHandler})

	logger.Info("Read API listening", "port", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}
