package processor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"bitrag/internal/feed"
	"bitrag/internal/models"
	"bitrag/internal/progress"
)

type fakeStore struct {
	prices   []*models.PriceTick
	txs      []*models.WhaleTransaction
	news     []*models.NewsArticle
	existing map[string]bool
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}}
}

func (s *fakeStore) UpsertPrices(_ context.Context, ticks []*models.PriceTick) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.prices = append(s.prices, ticks...)
	return nil
}

func (s *fakeStore) InsertTransactions(_ context.Context, txs []*models.WhaleTransaction) error {
	if s.failWith != nil {
		return s.failWith
	}
	s.txs = append(s.txs, txs...)
	return nil
}

func (s *fakeStore) InsertNews(_ context.Context, articles []*models.NewsArticle) ([]*models.NewsArticle, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	var inserted []*models.NewsArticle
	for _, article := range articles {
		if s.existing[article.Link] {
			continue
		}
		s.existing[article.Link] = true
		article.ID = int64(len(s.news) + 1)
		s.news = append(s.news, article)
		inserted = append(inserted, article)
	}
	return inserted, nil
}

type fakeIndexer struct {
	indexed []*models.NewsArticle
	err     error
}

func (ix *fakeIndexer) IndexArticles(_ context.Context, articles []*models.NewsArticle) error {
	if ix.err != nil {
		return ix.err
	}
	ix.indexed = append(ix.indexed, articles...)
	return nil
}

func newTestPipeline(store Store, indexer ArticleIndexer, stats *progress.Stats) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(store, indexer, stats, logger)
}

func TestParsePrice(t *testing.T) {
	tick, err := ParsePrice([]byte(`{"timestamp":"2024-01-01T00:00:00Z","price":43250.5}`))
	if err != nil {
		t.Fatalf("Expected valid message to parse, got %v", err)
	}
	if tick.Price != 43250.5 {
		t.Errorf("Expected price 43250.5, got %v", tick.Price)
	}
}

func TestParsePriceMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"timestamp":"2024-01-01T00:00:00Z","price":-5}`,
		`{"price":100}`,
	}
	for _, value := range cases {
		if _, err := ParsePrice([]byte(value)); !errors.Is(err, feed.ErrMalformedPayload) {
			t.Errorf("Expected ErrMalformedPayload for %q, got %v", value, err)
		}
	}
}

func TestParseTransactionAbsentTimestamp(t *testing.T) {
	tx, err := ParseTransaction([]byte(`{"tx_hash":"abc","value_btc":120,"input_count":1,"output_count":2}`))
	if err != nil {
		t.Fatalf("Expected valid message to parse, got %v", err)
	}
	if tx.Timestamp != nil {
		t.Error("Expected absent timestamp to stay absent")
	}
}

func TestParseNewsMalformed(t *testing.T) {
	if _, err := ParseNews([]byte(`{"title":"no link"}`)); !errors.Is(err, feed.ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload, got %v", err)
	}
}

func TestStorePricesCountsAfterWrite(t *testing.T) {
	store := newFakeStore()
	stats := progress.NewStats()
	pipeline := newTestPipeline(store, &fakeIndexer{}, stats)

	ticks := []*models.PriceTick{{Price: 1}, {Price: 2}}
	if err := pipeline.StorePrices(context.Background(), ticks); err != nil {
		t.Fatalf("StorePrices failed: %v", err)
	}

	if len(store.prices) != 2 {
		t.Errorf("Expected 2 stored ticks, got %d", len(store.prices))
	}
	if stats.Prices() != 2 {
		t.Errorf("Expected counter 2, got %d", stats.Prices())
	}
}

func TestStorePricesFailureDoesNotCount(t *testing.T) {
	store := newFakeStore()
	store.failWith = errors.New("connection reset")
	stats := progress.NewStats()
	pipeline := newTestPipeline(store, &fakeIndexer{}, stats)

	if err := pipeline.StorePrices(context.Background(), []*models.PriceTick{{Price: 1}}); err == nil {
		t.Fatal("Expected store failure to propagate")
	}
	if stats.Prices() != 0 {
		t.Errorf("Expected counter untouched on failure, got %d", stats.Prices())
	}
}

func TestStoreTransactions(t *testing.T) {
	store := newFakeStore()
	stats := progress.NewStats()
	pipeline := newTestPipeline(store, &fakeIndexer{}, stats)

	txs := []*models.WhaleTransaction{{TxHash: "a"}, {TxHash: "b"}, {TxHash: "c"}}
	if err := pipeline.StoreTransactions(context.Background(), txs); err != nil {
		t.Fatalf("StoreTransactions failed: %v", err)
	}
	if stats.Transactions() != 3 {
		t.Errorf("Expected counter 3, got %d", stats.Transactions())
	}
}

func TestStoreNewsIndexesOnlyNewRows(t *testing.T) {
	store := newFakeStore()
	store.existing["https://example.com/old"] = true

	indexer := &fakeIndexer{}
	stats := progress.NewStats()
	pipeline := newTestPipeline(store, indexer, stats)

	articles := []*models.NewsArticle{
		{Link: "https://example.com/old", Title: "already stored"},
		{Link: "https://example.com/new", Title: "fresh"},
	}
	if err := pipeline.StoreNews(context.Background(), articles); err != nil {
		t.Fatalf("StoreNews failed: %v", err)
	}

	if len(indexer.indexed) != 1 {
		t.Fatalf("Expected only the new row to reach the indexer, got %d", len(indexer.indexed))
	}
	if indexer.indexed[0].Link != "https://example.com/new" {
		t.Errorf("Wrong article indexed: %q", indexer.indexed[0].Link)
	}
	if indexer.indexed[0].ID == 0 {
		t.Error("Expected indexed article to carry its relational id")
	}
	if stats.News() != 2 {
		t.Errorf("Expected both articles counted as processed, got %d", stats.News())
	}
}

func TestStoreNewsSurvivesIndexerFailure(t *testing.T) {
	store := newFakeStore()
	indexer := &fakeIndexer{err: errors.New("embedder down")}
	stats := progress.NewStats()
	pipeline := newTestPipeline(store, indexer, stats)

	articles := []*models.NewsArticle{{Link: "https://example.com/a", Title: "a"}}
	if err := pipeline.StoreNews(context.Background(), articles); err != nil {
		t.Fatalf("Expected batch to survive an indexer failure, got %v", err)
	}
	if stats.News() != 1 {
		t.Errorf("Expected article still counted as processed, got %d", stats.News())
	}
}

func TestStoreNewsFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.failWith = errors.New("deadlock detected")
	pipeline := newTestPipeline(store, &fakeIndexer{}, progress.NewStats())

	articles := []*models.NewsArticle{{Link: "https://example.com/a"}}
	if err := pipeline.StoreNews(context.Background(), articles); err == nil {
		t.Fatal("Expected store failure to propagate so offsets stay uncommitted")
	}
}
