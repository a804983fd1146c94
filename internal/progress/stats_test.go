package progress

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestCountersAccumulate(t *testing.T) {
	stats := NewStats()

	stats.AddPrices(2)
	stats.AddPrices(3)
	stats.AddTransactions(1)
	stats.AddNews(4)
	stats.AddEmbeddings(4)
	stats.RecordError()

	if stats.Prices() != 5 {
		t.Errorf("Expected 5 prices, got %d", stats.Prices())
	}
	if stats.Transactions() != 1 {
		t.Errorf("Expected 1 transaction, got %d", stats.Transactions())
	}
	if stats.News() != 4 {
		t.Errorf("Expected 4 news, got %d", stats.News())
	}
	if stats.Embeddings() != 4 {
		t.Errorf("Expected 4 embeddings, got %d", stats.Embeddings())
	}
	if stats.Errors() != 1 {
		t.Errorf("Expected 1 error, got %d", stats.Errors())
	}
}

func TestConcurrentIncrements(t *testing.T) {
	stats := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				stats.AddPrices(1)
				stats.RecordError()
			}
		}()
	}
	wg.Wait()

	if stats.Prices() != 5000 {
		t.Errorf("Expected 5000 prices, got %d", stats.Prices())
	}
	if stats.Errors() != 5000 {
		t.Errorf("Expected 5000 errors, got %d", stats.Errors())
	}
}

func TestSnapshotFields(t *testing.T) {
	stats := NewStats()
	stats.AddPrices(10)
	stats.AddNews(2)

	snap := stats.Snapshot()

	if snap.PricesProcessed != 10 {
		t.Errorf("Expected 10 prices in snapshot, got %d", snap.PricesProcessed)
	}
	if snap.NewsProcessed != 2 {
		t.Errorf("Expected 2 news in snapshot, got %d", snap.NewsProcessed)
	}
	if snap.RuntimeSeconds < 0 {
		t.Errorf("Expected non-negative runtime, got %v", snap.RuntimeSeconds)
	}
	if snap.ProcessingRate.PricesPerMinute <= 0 {
		t.Errorf("Expected positive price rate, got %v", snap.ProcessingRate.PricesPerMinute)
	}
	if _, err := time.Parse(time.RFC3339, snap.StartTime); err != nil {
		t.Errorf("Expected RFC3339 start time, got %q", snap.StartTime)
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	stats := NewStats()
	stats.AddPrices(7)
	stats.AddTransactions(3)
	stats.RecordError()

	path := filepath.Join(t.TempDir(), "nested", "progress.json")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := NewMonitor(stats, path, time.Second, logger)

	if err := monitor.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	snap, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if snap.PricesProcessed != 7 {
		t.Errorf("Expected 7 prices, got %d", snap.PricesProcessed)
	}
	if snap.TransactionsProcessed != 3 {
		t.Errorf("Expected 3 transactions, got %d", snap.TransactionsProcessed)
	}
	if snap.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", snap.Errors)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("Expected error for a missing progress file")
	}
}
