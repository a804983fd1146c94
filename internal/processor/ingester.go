// Package processor consumes the three Kafka topics and persists each event
// exactly-once-effectively: batches are written to the relational store first
// and offsets are committed only afterwards, so a crash between write and
// commit causes a replay that the idempotent natural-key writes absorb.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"bitrag/internal/progress"
)

// Config holds ingester batching parameters.
type Config struct {
	// BatchSize is the maximum number of records to accumulate before flushing.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing, even if the
	// batch isn't full. It bounds staleness without unbounded buffering.
	BatchTimeout time.Duration
}

// ParseFunc deserializes and validates one raw message. A failure must wrap
// feed.ErrMalformedPayload; such messages are counted and skipped, never
// retried.
type ParseFunc[T any] func(value []byte) (T, error)

// StoreFunc durably writes one parsed batch, all-or-nothing.
type StoreFunc[T any] func(ctx context.Context, batch []T) error

// MessageReader is the slice of kafka.Reader the ingester uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Ingester reads one topic, parses and batches its payloads and hands each
// batch to the store function. It implements at-least-once delivery with
// manual commits.
type Ingester[T any] struct {
	reader MessageReader
	parse  ParseFunc[T]
	store  StoreFunc[T]
	stats  *progress.Stats
	cfg    Config
	logger *slog.Logger
}

// NewIngester creates an ingester over reader. It receives its dependencies
// rather than creating them, for testability.
func NewIngester[T any](reader MessageReader, parse ParseFunc[T], store StoreFunc[T], stats *progress.Stats, cfg Config, logger *slog.Logger) *Ingester[T] {
	return &Ingester[T]{
		reader: reader,
		parse:  parse,
		store:  store,
		stats:  stats,
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the ingestion loop until the context is cancelled. On shutdown
// it flushes the in-flight batch through its write-then-commit sequence so a
// restart does not double-count.
//
// The loop:
//  1. Fetches messages from Kafka
//  2. Parses payloads; malformed ones are counted and skipped
//  3. Accumulates records until the batch is full or the timeout elapses
//  4. Writes the batch to the store (all-or-nothing; on error the batch is
//     dropped and counted once, never retried at this layer)
//  5. Commits Kafka offsets only after a successful write
func (ig *Ingester[T]) Start(ctx context.Context) error {
	ig.logger.Info("Starting ingestion loop", "batch_size", ig.cfg.BatchSize, "batch_timeout", ig.cfg.BatchTimeout)

	batch := make([]T, 0, ig.cfg.BatchSize)
	msgs := make([]kafka.Message, 0, ig.cfg.BatchSize)

	ticker := time.NewTicker(ig.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(msgs) == 0 {
			return
		}

		if len(batch) > 0 {
			if err := ig.store(ctx, batch); err != nil {
				// Dropping bounds retry amplification: a permanently bad
				// batch would otherwise replay forever. Offsets stay
				// uncommitted, so a crash before the next successful flush
				// still redelivers.
				ig.logger.Error("Batch write failed, dropping batch", "count", len(batch), "error", err)
				ig.stats.RecordError()
				batch = batch[:0]
				msgs = msgs[:0]
				ticker.Reset(ig.cfg.BatchTimeout)
				return
			}
		}

		// Commit offsets AFTER the durable write (at-least-once).
		if err := ig.reader.CommitMessages(ctx, msgs...); err != nil {
			ig.logger.Warn("Failed to commit offsets", "error", err)
		}

		ig.logger.Debug("Flushed batch", "count", len(batch))
		batch = batch[:0]
		msgs = msgs[:0]
		ticker.Reset(ig.cfg.BatchTimeout)
	}

	// The shutdown flush detaches from the cancelled loop context so the
	// in-flight batch still completes its write-then-commit sequence,
	// bounded by the batch timeout.
	finalFlush := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), ig.cfg.BatchTimeout)
		defer cancel()
		flush(flushCtx)
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return nil

		case <-ticker.C:
			flush(ctx)

		default:
			fetchCtx, cancel := context.WithTimeout(ctx, ig.cfg.BatchTimeout)
			m, err := ig.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					finalFlush()
					return nil
				}
				ig.logger.Error("Kafka fetch error", "error", err)
				select {
				case <-ctx.Done():
					finalFlush()
					return nil
				case <-time.After(time.Second):
				}
				continue
			}

			record, err := ig.parse(m.Value)
			if err != nil {
				ig.logger.Warn("Skipping malformed message", "offset", m.Offset, "error", err)
				ig.stats.RecordError()
				// Still tracked for commit so the malformed message is not
				// redelivered forever.
				msgs = append(msgs, m)
				continue
			}

			batch = append(batch, record)
			msgs = append(msgs, m)

			if len(batch) >= ig.cfg.BatchSize {
				flush(ctx)
			}
		}
	}
}
