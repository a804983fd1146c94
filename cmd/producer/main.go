package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"bitrag/configs"
	"bitrag/internal/collector"
	"bitrag/internal/faulttolerance"
	"bitrag/internal/feed"
	"bitrag/internal/producer"
	"bitrag/internal/progress"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := configs.AppLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retryCfg := retryConfig(cfg, "kafka-connect")
	if err := faulttolerance.NewRetryer(retryCfg, logger).Execute(ctx, func() error {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaPrices.Broker)
		if err != nil {
			return err
		}
		return conn.Close()
	}); err != nil {
		logger.Error("Failed to connect to Kafka", "error", err)
		os.Exit(1)
	}

	publishRetry := faulttolerance.NewRetryer(retryConfig(cfg, "kafka-publish"), logger)
	pricePub := producer.NewKafkaPublisher(configs.GetKafkaWriter(cfg.KafkaPrices), publishRetry)
	whalePub := producer.NewKafkaPublisher(configs.GetKafkaWriter(cfg.KafkaWhales), publishRetry)
	newsPub := producer.NewKafkaPublisher(configs.GetKafkaWriter(cfg.KafkaNews), publishRetry)
	defer pricePub.Close()
	defer whalePub.Close()
	defer newsPub.Close()

	priceSource := collector.NewCryptoCompareClient(cfg.Producer.CryptoCompareAPIKey, logger)
	whaleSource := collector.NewBlockchairClient(cfg.Producer.WhaleMinBTC, logger)

	stats := progress.NewStats()
	monitor := progress.NewMonitor(stats, cfg.Snapshot.ProducerPath,
		time.Duration(cfg.Snapshot.IntervalSeconds)*time.Second, logger)

	priceFetch := func(ctx context.Context) ([]producer.Event, error) {
		tick, err := priceSource.LatestTick(ctx)
		if err != nil {
			return nil, err
		}
		return []producer.Event{tick}, nil
	}
	whaleFetch := func(ctx context.Context) ([]producer.Event, error) {
		txs, err := whaleSource.WhaleTransactionsSince(ctx, time.Now().Add(-cfg.Producer.WhaleLookback))
		if err != nil {
			return nil, err
		}
		events := make([]producer.Event, len(txs))
		for i := range txs {
			events[i] = &txs[i]
		}
		return events, nil
	}
	newsFetch := func(ctx context.Context) ([]producer.Event, error) {
		articles, err := priceSource.ArticlesSince(ctx, time.Now().Add(-cfg.Producer.NewsLookback))
		if err != nil {
			return nil, err
		}
		events := make([]producer.Event, len(articles))
		for i := range articles {
			events[i] = &articles[i]
		}
		return events, nil
	}

	adapters := []*producer.Adapter{
		producer.New(producer.Config{Name: feed.TopicPrices, Interval: cfg.Producer.PriceInterval},
			priceFetch, pricePub, stats, stats.AddPrices, logger),
		producer.New(producer.Config{Name: feed.TopicWhales, Interval: cfg.Producer.WhaleInterval},
			whaleFetch, whalePub, stats, stats.AddTransactions, logger),
		producer.New(producer.Config{Name: feed.TopicNews, Interval: cfg.Producer.NewsInterval},
			newsFetch, newsPub, stats, stats.AddNews, logger),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go monitor.Run(ctx, &wg)
	for _, adapter := range adapters {
		wg.Add(1)
		go adapter.Run(ctx, &wg)
	}

	logger.Info("All adapters started")
	wg.Wait()
	logger.Info("Producer shutdown complete")
}

func retryConfig(cfg *configs.AppConfig, name string) faulttolerance.RetryConfig {
	return faulttolerance.RetryConfig{
		MaxAttempts:      cfg.Retry.MaxAttempts,
		Delay:            time.Duration(cfg.Retry.DelaySeconds) * time.Second,
		RateLimitCeiling: time.Duration(cfg.Retry.RateLimitCeilingS) * time.Second,
		Name:             name,
	}
}
