package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bitrag/configs"
	"bitrag/internal/embedding"
	"bitrag/internal/faulttolerance"
	"bitrag/internal/migrations"
	"bitrag/internal/processor"
	"bitrag/internal/progress"
	"bitrag/internal/storage"
	"bitrag/internal/vector"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	migrateFlag := flag.Bool("migrate", false, "Run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Exhausting retries on any initial connection is fatal: the process
	// cannot proceed without its stores.
	var db *gorm.DB
	if err := newRetryer(cfg, "postgres-connect", logger).Execute(ctx, func() error {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
		return err
	}); err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	if *migrateFlag {
		runMigrations(db, logger)
		return
	}

	store := storage.NewGormStore(db)
	stats := progress.NewStats()

	embedder := embedding.NewHTTPEmbedder(cfg.Embedder.URL, cfg.Embedder.Model, cfg.Embedder.Dimension)

	// A dimension mismatch is a configuration error and aborts immediately
	// instead of burning attempts.
	var index *vector.Index
	milvusRetry := faulttolerance.NewRetryer(faulttolerance.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Delay:        time.Duration(cfg.Retry.DelaySeconds) * time.Second,
		Name:         "milvus-connect",
		NonRetryable: []error{vector.ErrDimensionMismatch},
	}, logger)
	if err := milvusRetry.Execute(ctx, func() error {
		var err error
		index, err = vector.Connect(ctx, cfg.Milvus.Address(), embedder.Dimension(), logger)
		return err
	}); err != nil {
		logger.Error("Failed to connect to Milvus", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	indexer := embedding.NewIndexer(embedder, index, store, stats, 50, logger)

	// Cold start / backfill: index any article stored while the indexer was
	// unavailable. A failure here degrades but does not abort; the next run
	// picks the remainder up again.
	logger.Info("Running embedding reconciliation pass")
	if err := indexer.Reconcile(ctx); err != nil {
		logger.Error("Reconciliation pass failed", "error", err)
	}

	if err := newRetryer(cfg, "kafka-connect", logger).Execute(ctx, func() error {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaPrices.Broker)
		if err != nil {
			return err
		}
		return conn.Close()
	}); err != nil {
		logger.Error("Failed to connect to Kafka", "error", err)
		os.Exit(1)
	}

	priceReader := configs.GetKafkaReader(cfg.KafkaPrices)
	whaleReader := configs.GetKafkaReader(cfg.KafkaWhales)
	newsReader := configs.GetKafkaReader(cfg.KafkaNews)
	defer priceReader.Close()
	defer whaleReader.Close()
	defer newsReader.Close()

	pipeline := processor.NewPipeline(store, indexer, stats, logger)
	ingesterCfg := processor.Config{
		BatchSize:    cfg.Ingester.BatchSize,
		BatchTimeout: time.Duration(cfg.Ingester.BatchTimeoutSeconds) * time.Second,
	}

	monitor := progress.NewMonitor(stats, cfg.Snapshot.Path,
		time.Duration(cfg.Snapshot.IntervalSeconds)*time.Second, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go monitor.Run(ctx, &wg)

	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				logger.Error("Ingester stopped with error", "topic", name, "error", err)
			}
		}()
	}

	start(cfg.KafkaPrices.Topic, processor.NewIngester(priceReader,
		processor.ParsePrice, pipeline.StorePrices, stats, ingesterCfg,
		logger.With("topic", cfg.KafkaPrices.Topic)).Start)
	start(cfg.KafkaWhales.Topic, processor.NewIngester(whaleReader,
		processor.ParseTransaction, pipeline.StoreTransactions, stats, ingesterCfg,
		logger.With("topic", cfg.KafkaWhales.Topic)).Start)
	start(cfg.KafkaNews.Topic, processor.NewIngester(newsReader,
		processor.ParseNews, pipeline.StoreNews, stats, ingesterCfg,
		logger.With("topic", cfg.KafkaNews.Topic)).Start)

	logger.Info("Processor started successfully")
	wg.Wait()
	logger.Info("Processor shutdown complete")
}

func runMigrations(db *gorm.DB, logger *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get sql.DB", "error", err)
		os.Exit(1)
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("Goose: failed to set dialect", "error", err)
		os.Exit(1)
	}
	logger.Info("Running database migrations...")
	if err := goose.Up(sqlDB, "."); err != nil {
		logger.Error("Goose migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations completed successfully")
}

func newRetryer(cfg *configs.AppConfig, name string, logger *slog.Logger) *faulttolerance.Retryer {
	return faulttolerance.NewRetryer(faulttolerance.RetryConfig{
		MaxAttempts:      cfg.Retry.MaxAttempts,
		Delay:            time.Duration(cfg.Retry.DelaySeconds) * time.Second,
		RateLimitCeiling: time.Duration(cfg.Retry.RateLimitCeilingS) * time.Second,
		Name:             name,
	}, logger)
}
