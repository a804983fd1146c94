// Package progress tracks process-wide processing counters and persists
// periodic snapshots for external observability.
package progress

import (
	"sync/atomic"
	"time"
)

// Stats holds the process-wide counters. All counters are monotonically
// non-decreasing for the lifetime of one process and safe for concurrent
// increment from multiple goroutines. Nothing outside this package resets them.
type Stats struct {
	start time.Time

	prices       atomic.Int64
	transactions atomic.Int64
	news         atomic.Int64
	embeddings   atomic.Int64
	errors       atomic.Int64

	lastUpdate atomic.Int64 // unix nanos
}

// NewStats creates a Stats with all counters at zero.
func NewStats() *Stats {
	s := &Stats{start: time.Now()}
	s.lastUpdate.Store(s.start.UnixNano())
	return s
}

func (s *Stats) touch() {
	s.lastUpdate.Store(time.Now().UnixNano())
}

// AddPrices records n successfully processed price ticks.
func (s *Stats) AddPrices(n int) {
	s.prices.Add(int64(n))
	s.touch()
}

// AddTransactions records n successfully processed whale transactions.
func (s *Stats) AddTransactions(n int) {
	s.transactions.Add(int64(n))
	s.touch()
}

// AddNews records n successfully processed news articles.
func (s *Stats) AddNews(n int) {
	s.news.Add(int64(n))
	s.touch()
}

// AddEmbeddings records n generated embeddings.
func (s *Stats) AddEmbeddings(n int) {
	s.embeddings.Add(int64(n))
	s.touch()
}

// RecordError records one lost unit of work. Every failure path increments
// this exactly once.
func (s *Stats) RecordError() {
	s.errors.Add(1)
	s.touch()
}

// Errors returns the current error count.
func (s *Stats) Errors() int64 {
	return s.errors.Load()
}

// Prices returns the current price counter.
func (s *Stats) Prices() int64 {
	return s.prices.Load()
}

// Transactions returns the current transaction counter.
func (s *Stats) Transactions() int64 {
	return s.transactions.Load()
}

// News returns the current news counter.
func (s *Stats) News() int64 {
	return s.news.Load()
}

// Embeddings returns the current embedding counter.
func (s *Stats) Embeddings() int64 {
	return s.embeddings.Load()
}

// Rates holds derived per-minute processing rates.
type Rates struct {
	PricesPerMinute       float64 `json:"prices_per_minute"`
	TransactionsPerMinute float64 `json:"transactions_per_minute"`
	NewsPerMinute         float64 `json:"news_per_minute"`
	EmbeddingsPerMinute   float64 `json:"embeddings_per_minute"`
}

// Snapshot is the externally visible view of the counters, written to the
// progress file on every interval and on shutdown.
type Snapshot struct {
	StartTime             string  `json:"start_time"`
	CurrentTime           string  `json:"current_time"`
	RuntimeSeconds        float64 `json:"runtime_seconds"`
	LastUpdate            string  `json:"last_update"`
	PricesProcessed       int64   `json:"prices_processed"`
	TransactionsProcessed int64   `json:"transactions_processed"`
	NewsProcessed         int64   `json:"news_processed"`
	EmbeddingsGenerated   int64   `json:"embeddings_generated"`
	Errors                int64   `json:"errors"`
	ProcessingRate        Rates   `json:"processing_rate"`
}

// Snapshot returns a point-in-time view of the counters with derived rates.
func (s *Stats) Snapshot() Snapshot {
	now := time.Now()
	runtime := now.Sub(s.start).Seconds()
	perMinute := func(count int64) float64 {
		return float64(count) * 60 / max(1, runtime)
	}

	return Snapshot{
		StartTime:             s.start.Format(time.RFC3339),
		CurrentTime:           now.Format(time.RFC3339),
		RuntimeSeconds:        runtime,
		LastUpdate:            time.Unix(0, s.lastUpdate.Load()).Format(time.RFC3339),
		PricesProcessed:       s.prices.Load(),
		TransactionsProcessed: s.transactions.Load(),
		NewsProcessed:         s.news.Load(),
		EmbeddingsGenerated:   s.embeddings.Load(),
		Errors:                s.errors.Load(),
		ProcessingRate: Rates{
			PricesPerMinute:       perMinute(s.prices.Load()),
			TransactionsPerMinute: perMinute(s.transactions.Load()),
			NewsPerMinute:         perMinute(s.news.Load()),
			EmbeddingsPerMinute:   perMinute(s.embeddings.Load()),
		},
	}
}
