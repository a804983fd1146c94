// Package service exposes read-only views over the relational store and the
// progress snapshot for the answer-generation client.
package service

import (
	"context"

	"bitrag/internal/models"
	"bitrag/internal/progress"
)

// Repository is the read slice of the relational store.
type Repository interface {
	RecentPrices(ctx context.Context, days int) ([]models.PriceTick, error)
	RecentWhaleTransactions(ctx context.Context, limit int) ([]models.WhaleTransaction, error)
}

// MarketService serves recent market data and the live progress snapshot.
type MarketService struct {
	repo         Repository
	progressFile string
}

// NewMarketService creates the service. progressFile is the snapshot the
// processor writes every interval.
func NewMarketService(repo Repository, progressFile string) *MarketService {
	return &MarketService{
		repo:         repo,
		progressFile: progressFile,
	}
}

// RecentPrices returns price rows from the past number of days.
func (ms *MarketService) RecentPrices(ctx context.Context, days int) ([]models.PriceTick, error) {
	return ms.repo.RecentPrices(ctx, days)
}

// RecentWhales returns the most recent high-value transactions.
func (ms *MarketService) RecentWhales(ctx context.Context, limit int) ([]models.WhaleTransaction, error) {
	return ms.repo.RecentWhaleTransactions(ctx, limit)
}

// Progress returns the processor's latest persisted counters. The snapshot is
// at most one interval stale.
func (ms *MarketService) Progress() (progress.Snapshot, error) {
	return progress.LoadSnapshot(ms.progressFile)
}
