// Package storage implements the relational store writer and reader on
// PostgreSQL. All writes are idempotent against the natural keys, so replays
// caused by at-least-once delivery collapse into no-ops or overwrites.
package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitrag/internal/models"
)

// GormStore persists and reads the three entity kinds. One store owns one
// connection pool; batch writes are transactional, all-or-nothing per call.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// UpsertPrices writes price ticks, overwriting the numeric fields of any row
// that already has the same timestamp. The key itself is never mutated.
func (s *GormStore) UpsertPrices(ctx context.Context, ticks []*models.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "market_cap", "volume"}),
	}).Create(&ticks).Error
	if err != nil {
		return fmt.Errorf("failed to upsert prices: %w", err)
	}
	return nil
}

// InsertTransactions writes whale transactions, ignoring any row whose
// tx_hash is already stored. Stored rows are immutable.
func (s *GormStore) InsertTransactions(ctx context.Context, txs []*models.WhaleTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoNothing: true,
	}).Create(&txs).Error
	if err != nil {
		return fmt.Errorf("failed to insert transactions: %w", err)
	}
	return nil
}

// InsertNews writes articles, ignoring link conflicts, and returns only the
// rows that were actually inserted - the only rows that received an id and
// the only rows the embedding indexer may see. Rows are inserted one at a
// time inside a transaction because the generated ids must be attributable
// per row, but the batch still commits or rolls back as a whole.
func (s *GormStore) InsertNews(ctx context.Context, articles []*models.NewsArticle) ([]*models.NewsArticle, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	inserted := make([]*models.NewsArticle, 0, len(articles))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, article := range articles {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "link"}},
				DoNothing: true,
			}).Create(article)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				inserted = append(inserted, article)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert news: %w", err)
	}
	return inserted, nil
}

// NewsBatchAfter returns up to limit articles with id greater than afterID,
// in id order. The reconciliation pass walks the table with it.
func (s *GormStore) NewsBatchAfter(ctx context.Context, afterID int64, limit int) ([]*models.NewsArticle, error) {
	var articles []*models.NewsArticle
	err := s.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list news batch: %w", err)
	}
	return articles, nil
}

// RecentPrices returns price rows from the past number of days, newest first.
func (s *GormStore) RecentPrices(ctx context.Context, days int) ([]models.PriceTick, error) {
	var ticks []models.PriceTick
	cutoff := time.Now().AddDate(0, 0, -days)
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", cutoff).
		Order("timestamp desc").
		Find(&ticks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent prices: %w", err)
	}
	return ticks, nil
}

// RecentWhaleTransactions returns the most recent high-value transactions.
func (s *GormStore) RecentWhaleTransactions(ctx context.Context, limit int) ([]models.WhaleTransaction, error) {
	var txs []models.WhaleTransaction
	err := s.db.WithContext(ctx).
		Order("timestamp desc NULLS LAST").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	return txs, nil
}
