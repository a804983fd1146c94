package producer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bitrag/internal/progress"
)

// Event is one item observed at the upstream source, identified by its
// natural key (timestamp, tx_hash or link).
type Event interface {
	Key() string
}

// FetchFunc fetches the current window of events from the upstream source,
// newest first.
type FetchFunc func(ctx context.Context) ([]Event, error)

// Config holds adapter settings.
type Config struct {
	// Name identifies the feed in logs ("price", "whale", "news").
	Name string

	// Interval is the poll cadence.
	Interval time.Duration
}

// Adapter polls one upstream feed on a fixed interval and publishes newly
// observed events to the bus. It owns the feed's dedup window: the set of
// natural keys emitted in the previous cycle. The window is replaced
// wholesale each successful poll, so an item that disappears from the
// upstream and reappears later is treated as new again - an accepted
// bounded-memory trade-off.
type Adapter struct {
	cfg       Config
	fetch     FetchFunc
	publisher Publisher
	stats     *progress.Stats
	count     func(n int)
	logger    *slog.Logger

	// window is owned exclusively by this adapter's goroutine.
	window map[string]struct{}
}

// New creates an adapter. count is called with the number of events published
// in a cycle (typically one of the Stats Add methods).
func New(cfg Config, fetch FetchFunc, publisher Publisher, stats *progress.Stats, count func(n int), logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg:       cfg,
		fetch:     fetch,
		publisher: publisher,
		stats:     stats,
		count:     count,
		logger:    logger.With("feed", cfg.Name),
		window:    make(map[string]struct{}),
	}
}

// Run polls once immediately, then on every interval until the context is
// cancelled. A failed poll is logged and retried on the next interval, never
// immediately, so one slow feed cannot stall the others.
func (a *Adapter) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	a.logger.Info("Adapter started", "interval", a.cfg.Interval)

	a.Poll(ctx)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Adapter stopped")
			return
		case <-ticker.C:
			a.Poll(ctx)
		}
	}
}

// Poll runs one fetch-dedup-publish cycle. Publish failures are logged and
// counted individually and do not abort the remaining items in the batch.
func (a *Adapter) Poll(ctx context.Context) {
	events, err := a.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Error("Poll failed", "error", err)
		a.stats.RecordError()
		return
	}

	current := make(map[string]struct{}, len(events))
	published := 0
	for _, event := range events {
		key := event.Key()
		current[key] = struct{}{}

		if _, seen := a.window[key]; seen {
			continue
		}

		if err := a.publisher.Publish(ctx, event); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error("Publish failed, skipping event", "key", key, "error", err)
			a.stats.RecordError()
			continue
		}
		published++
	}

	// Full replacement, not a merge: keys absent from this cycle fall out
	// of the window.
	a.window = current

	if published > 0 {
		a.count(published)
		a.logger.Info("Published new events", "count", published, "observed", len(events))
	} else {
		a.logger.Debug("No new events", "observed", len(events))
	}
}
