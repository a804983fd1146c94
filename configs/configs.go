// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"bitrag/internal/feed"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// PostgresDSN is the PostgreSQL connection string.
	PostgresDSN string

	// KafkaPrices, KafkaWhales and KafkaNews hold the per-topic bus settings.
	KafkaPrices KafkaConfig
	KafkaWhales KafkaConfig
	KafkaNews   KafkaConfig

	// Milvus contains vector index connection settings.
	Milvus MilvusConfig

	// Embedder contains settings for the embedding service.
	Embedder EmbedderConfig

	// Producer contains settings for the event-source adapters.
	Producer ProducerConfig

	// Ingester contains batching settings for the stream consumer.
	Ingester IngesterConfig

	// Retry contains the bounded retry/backoff policy.
	Retry RetryConfig

	// Snapshot contains progress snapshot persistence settings.
	Snapshot SnapshotConfig

	// ServerPort is the port the read API listens on.
	ServerPort string
}

// KafkaConfig holds Kafka connection settings for one topic.
type KafkaConfig struct {
	Broker  string
	Topic   string
	GroupID string
}

// MilvusConfig holds vector index connection settings.
type MilvusConfig struct {
	Host string
	Port string
}

// Address returns the Milvus gRPC address.
func (m MilvusConfig) Address() string {
	return fmt.Sprintf("%s:%s", m.Host, m.Port)
}

// EmbedderConfig holds settings for the embedding service.
type EmbedderConfig struct {
	// URL is the OpenAI-compatible embeddings endpoint.
	URL string

	// Model is the embedding model name.
	Model string

	// Dimension is the fixed vector dimension produced by the model.
	Dimension int
}

// ProducerConfig holds settings for the three polling adapters.
type ProducerConfig struct {
	// PriceInterval, WhaleInterval and NewsInterval are the per-feed poll cadences.
	PriceInterval time.Duration
	WhaleInterval time.Duration
	NewsInterval  time.Duration

	// WhaleMinBTC is the minimum output value for a transaction to qualify as a whale.
	WhaleMinBTC float64

	// WhaleLookback is how far back each whale poll reaches.
	WhaleLookback time.Duration

	// NewsLookback is how far back each news poll reaches.
	NewsLookback time.Duration

	// CryptoCompareAPIKey authenticates price and news requests.
	CryptoCompareAPIKey string
}

// IngesterConfig holds settings for batch processing.
type IngesterConfig struct {
	// BatchSize is the maximum number of records to accumulate before flushing.
	BatchSize int

	// BatchTimeoutSeconds is the maximum seconds to wait before flushing.
	BatchTimeoutSeconds int
}

// RetryConfig holds the bounded retry policy applied to external dependencies.
type RetryConfig struct {
	MaxAttempts       int
	DelaySeconds      int
	RateLimitCeilingS int
}

// SnapshotConfig holds progress snapshot persistence settings.
type SnapshotConfig struct {
	// Path is the JSON file the processor writes its progress snapshot to.
	Path string

	// ProducerPath is the JSON file the producer writes its progress snapshot to.
	ProducerPath string

	// IntervalSeconds is the snapshot cadence.
	IntervalSeconds int
}

// getPostgresDSN constructs the PostgreSQL DSN from environment variables.
func getPostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		getEnv("PG_USER", "bitrag"),
		getEnv("PG_PASS", "bitragpassword"),
		getEnv("PG_DB", "bitrag_db"),
		getEnv("PG_SSLMODE", "disable"),
	)
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // Ignore error - .env is optional

	broker := getEnv("KAFKA_BROKER", "localhost:9092")

	return &AppConfig{
		PostgresDSN: getPostgresDSN(),
		KafkaPrices: KafkaConfig{
			Broker:  broker,
			Topic:   getEnv("KAFKA_PRICE_TOPIC", feed.TopicPrices),
			GroupID: getEnv("KAFKA_PRICE_GROUP_ID", "bitrag-price-processor"),
		},
		KafkaWhales: KafkaConfig{
			Broker:  broker,
			Topic:   getEnv("KAFKA_WHALE_TOPIC", feed.TopicWhales),
			GroupID: getEnv("KAFKA_WHALE_GROUP_ID", "bitrag-whale-processor"),
		},
		KafkaNews: KafkaConfig{
			Broker:  broker,
			Topic:   getEnv("KAFKA_NEWS_TOPIC", feed.TopicNews),
			GroupID: getEnv("KAFKA_NEWS_GROUP_ID", "bitrag-news-processor"),
		},
		Milvus: MilvusConfig{
			Host: getEnv("MILVUS_HOST", "localhost"),
			Port: getEnv("MILVUS_PORT", "19530"),
		},
		Embedder: EmbedderConfig{
			URL:       getEnv("EMBEDDER_URL", "http://localhost:8090/v1/embeddings"),
			Model:     getEnv("EMBEDDER_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 384),
		},
		Producer: ProducerConfig{
			PriceInterval:       time.Duration(getEnvInt("PRICE_POLL_SECONDS", 300)) * time.Second,
			WhaleInterval:       time.Duration(getEnvInt("WHALE_POLL_SECONDS", 600)) * time.Second,
			NewsInterval:        time.Duration(getEnvInt("NEWS_POLL_SECONDS", 900)) * time.Second,
			WhaleMinBTC:         getEnvFloat("WHALE_MIN_BTC", 100),
			WhaleLookback:       time.Duration(getEnvInt("WHALE_LOOKBACK_MINUTES", 10)) * time.Minute,
			NewsLookback:        time.Duration(getEnvInt("NEWS_LOOKBACK_HOURS", 24)) * time.Hour,
			CryptoCompareAPIKey: getEnv("CRYPTOCOMPARE_API_KEY", ""),
		},
		Ingester: IngesterConfig{
			BatchSize:           getEnvInt("BATCH_SIZE", 200),
			BatchTimeoutSeconds: getEnvInt("BATCH_TIMEOUT_SECONDS", 5),
		},
		Retry: RetryConfig{
			MaxAttempts:       getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			DelaySeconds:      getEnvInt("RETRY_DELAY_SECONDS", 10),
			RateLimitCeilingS: getEnvInt("RETRY_RATE_LIMIT_CEILING_SECONDS", 300),
		},
		Snapshot: SnapshotConfig{
			Path:            getEnv("PROGRESS_FILE", "data/processing_progress.json"),
			ProducerPath:    getEnv("COLLECTION_PROGRESS_FILE", "data/collection_progress.json"),
			IntervalSeconds: getEnvInt("PROGRESS_INTERVAL_SECONDS", 10),
		},
		ServerPort: getEnv("SERVER_PORT", "8080"),
	}
}

// GetKafkaWriter builds a writer for one topic. Writes are synchronous so that
// publish failures surface to the adapter that issued them.
func GetKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

// GetKafkaReader builds a reader for one topic. CommitInterval is zero:
// offsets are committed manually, only after a batch is durably written.
func GetKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.Broker},
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Important: offsets are committed manually!
	})
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
