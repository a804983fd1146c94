// Package vector wraps the Milvus collection holding news article embeddings.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// ErrDimensionMismatch means the existing collection was created for a
// different embedding dimension than the configured model produces. This is a
// configuration error, never retried: the process must abort.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

const (
	collectionName = "news_embeddings"

	maxTitleLen   = 500
	maxContentLen = 2000
	maxSourceLen  = 100
	maxDateLen    = 30
	maxLinkLen    = 500
)

// Item is one embedding row: a vector tagged with the relational news id and
// enough article metadata to render retrieval results without a join.
type Item struct {
	NewsID        int64
	Vector        []float32
	Title         string
	Content       string
	Source        string
	PublishedDate string
	Link          string
}

// Index is a connected Milvus collection of fixed dimension.
type Index struct {
	client client.Client
	dim    int
	logger *slog.Logger
}

// Connect dials Milvus, creates the collection and its similarity index if
// absent, verifies the dimension and loads the collection for queries.
func Connect(ctx context.Context, address string, dim int, logger *slog.Logger) (*Index, error) {
	c, err := client.NewClient(ctx, client.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	idx := &Index{client: c, dim: dim, logger: logger}
	if err := idx.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.LoadCollection(ctx, collectionName, false); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Connected to Milvus", "collection", collectionName, "dimension", dim)
	return idx, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	has, err := i.client.HasCollection(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return i.checkDimension(ctx)
	}

	schema := &entity.Schema{
		CollectionName: collectionName,
		Description:    "News article embeddings",
		Fields: []*entity.Field{
			{Name: "id", DataType: entity.FieldTypeInt64, PrimaryKey: true, AutoID: true},
			{Name: "news_id", DataType: entity.FieldTypeInt64},
			{Name: "embedding", DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{
				entity.TypeParamDim: strconv.Itoa(i.dim),
			}},
			{Name: "title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{
				entity.TypeParamMaxLength: strconv.Itoa(maxTitleLen),
			}},
			{Name: "content", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{
				entity.TypeParamMaxLength: strconv.Itoa(maxContentLen),
			}},
			{Name: "source", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{
				entity.TypeParamMaxLength: strconv.Itoa(maxSourceLen),
			}},
			{Name: "published_date", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{
				entity.TypeParamMaxLength: strconv.Itoa(maxDateLen),
			}},
			{Name: "link", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{
				entity.TypeParamMaxLength: strconv.Itoa(maxLinkLen),
			}},
		},
	}

	if err := i.client.CreateCollection(ctx, schema, 1); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	index, err := entity.NewIndexIvfFlat(entity.L2, 128)
	if err != nil {
		return fmt.Errorf("failed to build index params: %w", err)
	}
	if err := i.client.CreateIndex(ctx, collectionName, "embedding", index, false); err != nil {
		return fmt.Errorf("failed to create similarity index: %w", err)
	}

	i.logger.Info("Created Milvus collection", "collection", collectionName)
	return nil
}

// checkDimension asserts the existing collection matches the configured
// embedding dimension.
func (i *Index) checkDimension(ctx context.Context) error {
	coll, err := i.client.DescribeCollection(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("failed to describe collection: %w", err)
	}
	for _, field := range coll.Schema.Fields {
		if field.Name != "embedding" {
			continue
		}
		dimStr := field.TypeParams[entity.TypeParamDim]
		dim, err := strconv.Atoi(dimStr)
		if err != nil {
			return fmt.Errorf("failed to parse collection dimension %q: %w", dimStr, err)
		}
		if dim != i.dim {
			return fmt.Errorf("%w: collection has %d, model produces %d", ErrDimensionMismatch, dim, i.dim)
		}
		return nil
	}
	return fmt.Errorf("collection %s has no embedding field", collectionName)
}

// Insert writes one batch of embedding rows. All-or-nothing per call: a
// failure leaves no partial-success bookkeeping behind.
func (i *Index) Insert(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	newsIDs := make([]int64, len(items))
	vectors := make([][]float32, len(items))
	titles := make([]string, len(items))
	contents := make([]string, len(items))
	sources := make([]string, len(items))
	dates := make([]string, len(items))
	links := make([]string, len(items))

	for n, item := range items {
		if len(item.Vector) != i.dim {
			return fmt.Errorf("%w: got vector of length %d, want %d", ErrDimensionMismatch, len(item.Vector), i.dim)
		}
		newsIDs[n] = item.NewsID
		vectors[n] = item.Vector
		titles[n] = truncate(item.Title, maxTitleLen)
		contents[n] = truncate(item.Content, maxContentLen)
		sources[n] = truncate(item.Source, maxSourceLen)
		dates[n] = truncate(item.PublishedDate, maxDateLen)
		links[n] = truncate(item.Link, maxLinkLen)
	}

	_, err := i.client.Insert(ctx, collectionName, "",
		entity.NewColumnInt64("news_id", newsIDs),
		entity.NewColumnFloatVector("embedding", i.dim, vectors),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("published_date", dates),
		entity.NewColumnVarChar("link", links),
	)
	if err != nil {
		return fmt.Errorf("failed to insert embeddings: %w", err)
	}

	if err := i.client.Flush(ctx, collectionName, false); err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	return nil
}

// ExistingNewsIDs reports which of the given news ids already have an
// embedding row. The reconciliation pass uses it to stay idempotent.
func (i *Index) ExistingNewsIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	existing := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	parts := make([]string, len(ids))
	for n, id := range ids {
		parts[n] = strconv.FormatInt(id, 10)
	}
	expr := fmt.Sprintf("news_id in [%s]", strings.Join(parts, ","))

	rs, err := i.client.Query(ctx, collectionName, nil, expr, []string{"news_id"})
	if err != nil {
		return nil, fmt.Errorf("failed to query existing embeddings: %w", err)
	}

	col := rs.GetColumn("news_id")
	if col == nil {
		return existing, nil
	}
	idCol, ok := col.(*entity.ColumnInt64)
	if !ok {
		return nil, fmt.Errorf("unexpected column type %T for news_id", col)
	}
	for _, id := range idCol.Data() {
		existing[id] = true
	}
	return existing, nil
}

// Dimension returns the collection's vector dimension.
func (i *Index) Dimension() int {
	return i.dim
}

// Close releases the Milvus connection.
func (i *Index) Close() error {
	return i.client.Close()
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
