package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Monitor persists a Stats snapshot to a JSON file on a fixed cadence and a
// final time on shutdown, so external observers see state at most one
// interval stale.
type Monitor struct {
	stats    *Stats
	path     string
	interval time.Duration
	logger   *slog.Logger
}

// NewMonitor creates a monitor writing snapshots of stats to path.
func NewMonitor(stats *Stats, path string, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		stats:    stats,
		path:     path,
		interval: interval,
		logger:   logger,
	}
}

// Run writes snapshots until the context is cancelled, then flushes a final
// snapshot and returns.
func (m *Monitor) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	m.logger.Info("Progress monitoring started", "file", m.path, "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := m.Save(); err != nil {
				m.logger.Error("Error saving final progress snapshot", "error", err)
			}
			m.logger.Info("Progress monitoring stopped")
			return
		case <-ticker.C:
			if err := m.Save(); err != nil {
				m.logger.Error("Error saving progress snapshot", "error", err)
			}
		}
	}
}

// Save writes the current snapshot to the progress file.
func (m *Monitor) Save() error {
	snap := m.stats.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress snapshot: %w", err)
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create progress directory: %w", err)
		}
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot previously written by a Monitor. The read API
// uses it to expose the processor's counters across process boundaries.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("failed to read progress file: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to parse progress file: %w", err)
	}
	return snap, nil
}
