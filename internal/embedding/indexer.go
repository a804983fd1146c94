package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bitrag/internal/models"
	"bitrag/internal/progress"
	"bitrag/internal/vector"
)

// VectorIndex is the slice of the vector store the indexer needs.
type VectorIndex interface {
	Insert(ctx context.Context, items []vector.Item) error
	ExistingNewsIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
}

// NewsLister walks the stored news articles in id order.
type NewsLister interface {
	NewsBatchAfter(ctx context.Context, afterID int64, limit int) ([]*models.NewsArticle, error)
}

// Indexer projects news articles into the vector index. Each call batch is
// all-or-nothing: a partial upstream failure fails the whole call and counts
// once in the error counter, with no partial-success bookkeeping.
type Indexer struct {
	embedder  Embedder
	index     VectorIndex
	store     NewsLister
	stats     *progress.Stats
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an indexer. batchSize bounds the reconciliation batches.
func NewIndexer(embedder Embedder, index VectorIndex, store NewsLister, stats *progress.Stats, batchSize int, logger *slog.Logger) *Indexer {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Indexer{
		embedder:  embedder,
		index:     index,
		store:     store,
		stats:     stats,
		batchSize: batchSize,
		logger:    logger,
	}
}

// IndexArticles embeds title + summary of each article and inserts the
// vectors tagged with the relational ids. Callers must pass only articles
// that were genuinely inserted - rows whose link conflicted never reach this
// point, so no article is ever embedded twice by the live path.
// Failures are counted here exactly once; callers must not count them again.
func (ix *Indexer) IndexArticles(ctx context.Context, articles []*models.NewsArticle) error {
	if len(articles) == 0 {
		return nil
	}

	texts := make([]string, len(articles))
	for n, article := range articles {
		texts[n] = article.Title + " " + article.Summary
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		ix.stats.RecordError()
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	items := make([]vector.Item, len(articles))
	for n, article := range articles {
		published := ""
		if article.PublishedDate != nil {
			published = article.PublishedDate.Format(time.RFC3339)
		}
		items[n] = vector.Item{
			NewsID:        article.ID,
			Vector:        vectors[n],
			Title:         article.Title,
			Content:       article.Summary,
			Source:        article.Source,
			PublishedDate: published,
			Link:          article.Link,
		}
	}

	if err := ix.index.Insert(ctx, items); err != nil {
		ix.stats.RecordError()
		return fmt.Errorf("failed to store embeddings: %w", err)
	}

	ix.stats.AddEmbeddings(len(articles))
	ix.logger.Info("Stored news embeddings", "count", len(articles))
	return nil
}

// Reconcile scans the relational store for news rows without an embedding and
// indexes them in bounded batches. It covers rows stored while the indexer
// was unavailable and is idempotent: when every row already has its
// embedding, it performs zero inserts.
func (ix *Indexer) Reconcile(ctx context.Context) error {
	var afterID int64
	indexed := 0

	for {
		articles, err := ix.store.NewsBatchAfter(ctx, afterID, ix.batchSize)
		if err != nil {
			ix.stats.RecordError()
			return fmt.Errorf("reconciliation scan failed: %w", err)
		}
		if len(articles) == 0 {
			break
		}
		afterID = articles[len(articles)-1].ID

		ids := make([]int64, len(articles))
		for n, article := range articles {
			ids[n] = article.ID
		}
		existing, err := ix.index.ExistingNewsIDs(ctx, ids)
		if err != nil {
			ix.stats.RecordError()
			return fmt.Errorf("reconciliation lookup failed: %w", err)
		}

		var missing []*models.NewsArticle
		for _, article := range articles {
			if !existing[article.ID] {
				missing = append(missing, article)
			}
		}
		if len(missing) == 0 {
			continue
		}

		if err := ix.IndexArticles(ctx, missing); err != nil {
			return err
		}
		indexed += len(missing)
	}

	if indexed > 0 {
		ix.logger.Info("Reconciliation complete", "indexed", indexed)
	} else {
		ix.logger.Info("Reconciliation complete, nothing to index")
	}
	return nil
}
