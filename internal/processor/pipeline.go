package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bitrag/internal/feed"
	"bitrag/internal/models"
	"bitrag/internal/progress"
)

// Store is the slice of the relational writer the pipeline needs.
type Store interface {
	UpsertPrices(ctx context.Context, ticks []*models.PriceTick) error
	InsertTransactions(ctx context.Context, txs []*models.WhaleTransaction) error
	InsertNews(ctx context.Context, articles []*models.NewsArticle) ([]*models.NewsArticle, error)
}

// ArticleIndexer receives the articles that actually got an id.
type ArticleIndexer interface {
	IndexArticles(ctx context.Context, articles []*models.NewsArticle) error
}

// Pipeline binds the per-topic parse and store steps together. The processed
// counters increment only after the corresponding durable write succeeded.
type Pipeline struct {
	store   Store
	indexer ArticleIndexer
	stats   *progress.Stats
	logger  *slog.Logger
}

// NewPipeline creates the pipeline.
func NewPipeline(store Store, indexer ArticleIndexer, stats *progress.Stats, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		indexer: indexer,
		stats:   stats,
		logger:  logger,
	}
}

// ParsePrice deserializes and validates one price message.
func ParsePrice(value []byte) (*models.PriceTick, error) {
	var payload feed.PricePayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrMalformedPayload, err)
	}
	return payload.ToModel()
}

// ParseTransaction deserializes and validates one whale transaction message.
func ParseTransaction(value []byte) (*models.WhaleTransaction, error) {
	var payload feed.TransactionPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrMalformedPayload, err)
	}
	return payload.ToModel()
}

// ParseNews deserializes and validates one news message.
func ParseNews(value []byte) (*models.NewsArticle, error) {
	var payload feed.NewsPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrMalformedPayload, err)
	}
	return payload.ToModel()
}

// StorePrices upserts one price batch.
func (p *Pipeline) StorePrices(ctx context.Context, ticks []*models.PriceTick) error {
	if err := p.store.UpsertPrices(ctx, ticks); err != nil {
		return err
	}
	p.stats.AddPrices(len(ticks))
	p.logger.Info("Stored price records", "count", len(ticks))
	return nil
}

// StoreTransactions inserts one whale transaction batch.
func (p *Pipeline) StoreTransactions(ctx context.Context, txs []*models.WhaleTransaction) error {
	if err := p.store.InsertTransactions(ctx, txs); err != nil {
		return err
	}
	p.stats.AddTransactions(len(txs))
	p.logger.Info("Stored whale transactions", "count", len(txs))
	return nil
}

// StoreNews inserts one news batch and hands the genuinely new rows - and
// only those - to the embedding indexer. An embedding failure does not fail
// the batch: the article rows are already durable and the reconciliation
// pass will index them later (the indexer counts its own errors).
func (p *Pipeline) StoreNews(ctx context.Context, articles []*models.NewsArticle) error {
	inserted, err := p.store.InsertNews(ctx, articles)
	if err != nil {
		return err
	}
	p.stats.AddNews(len(articles))
	p.logger.Info("Stored news articles", "count", len(articles), "new", len(inserted))

	if len(inserted) > 0 {
		if err := p.indexer.IndexArticles(ctx, inserted); err != nil {
			p.logger.Error("Embedding failed, articles remain queued for reconciliation", "count", len(inserted), "error", err)
		}
	}
	return nil
}
