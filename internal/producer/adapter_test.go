package producer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"bitrag/internal/progress"
)

type stubEvent string

func (e stubEvent) Key() string { return string(e) }

type fakePublisher struct {
	published []string
	failKeys  map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, payload any) error {
	key := string(payload.(stubEvent))
	if p.failKeys[key] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdapter(fetch FetchFunc, pub Publisher, stats *progress.Stats, count func(int)) *Adapter {
	return New(Config{Name: "test", Interval: time.Minute}, fetch, pub, stats, count, testLogger())
}

func fetchKeys(keys ...string) FetchFunc {
	return func(context.Context) ([]Event, error) {
		events := make([]Event, len(keys))
		for i, k := range keys {
			events[i] = stubEvent(k)
		}
		return events, nil
	}
}

func TestDedupWindowReplacement(t *testing.T) {
	pub := &fakePublisher{}
	stats := progress.NewStats()
	var emitted int
	adapter := newTestAdapter(nil, pub, stats, func(n int) { emitted += n })

	// Cycle 1 observes {A,B}: both are new.
	adapter.fetch = fetchKeys("A", "B")
	adapter.Poll(context.Background())
	if len(pub.published) != 2 {
		t.Fatalf("Expected 2 events in cycle 1, got %d", len(pub.published))
	}

	// Cycle 2 observes {B,C}: only C is new, A falls out of the window.
	adapter.fetch = fetchKeys("B", "C")
	adapter.Poll(context.Background())
	if len(pub.published) != 3 || pub.published[2] != "C" {
		t.Fatalf("Expected only C in cycle 2, got %v", pub.published)
	}

	// Cycle 3 observes {A}: A was forgotten, so it is emitted again.
	adapter.fetch = fetchKeys("A")
	adapter.Poll(context.Background())
	if len(pub.published) != 4 || pub.published[3] != "A" {
		t.Fatalf("Expected A to be re-emitted in cycle 3, got %v", pub.published)
	}

	if emitted != 4 {
		t.Errorf("Expected 4 counted events, got %d", emitted)
	}
	if stats.Errors() != 0 {
		t.Errorf("Expected no errors, got %d", stats.Errors())
	}
}

func TestEmptyDeltaPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	stats := progress.NewStats()
	adapter := newTestAdapter(fetchKeys("A", "B"), pub, stats, func(int) {})

	adapter.Poll(context.Background())
	adapter.Poll(context.Background())

	if len(pub.published) != 2 {
		t.Errorf("Expected repeated cycle to publish nothing new, got %v", pub.published)
	}
}

func TestPublishFailureDoesNotAbortBatch(t *testing.T) {
	pub := &fakePublisher{failKeys: map[string]bool{"B": true}}
	stats := progress.NewStats()
	var emitted int
	adapter := newTestAdapter(fetchKeys("A", "B", "C"), pub, stats, func(n int) { emitted += n })

	adapter.Poll(context.Background())

	if len(pub.published) != 2 {
		t.Fatalf("Expected A and C despite B failing, got %v", pub.published)
	}
	if stats.Errors() != 1 {
		t.Errorf("Expected exactly 1 error, got %d", stats.Errors())
	}
	if emitted != 2 {
		t.Errorf("Expected 2 counted events, got %d", emitted)
	}
}

func TestFetchFailureCountsOneError(t *testing.T) {
	pub := &fakePublisher{}
	stats := progress.NewStats()
	fetch := func(context.Context) ([]Event, error) { return nil, errors.New("upstream down") }
	adapter := newTestAdapter(fetch, pub, stats, func(int) {})

	adapter.Poll(context.Background())

	if stats.Errors() != 1 {
		t.Errorf("Expected 1 error, got %d", stats.Errors())
	}
	if len(pub.published) != 0 {
		t.Errorf("Expected no publishes, got %v", pub.published)
	}
}

func TestFailedFetchKeepsWindow(t *testing.T) {
	pub := &fakePublisher{}
	stats := progress.NewStats()
	adapter := newTestAdapter(fetchKeys("A"), pub, stats, func(int) {})

	adapter.Poll(context.Background())

	// A failed poll must not clear the window: A is still suppressed after.
	adapter.fetch = func(context.Context) ([]Event, error) { return nil, errors.New("flaky") }
	adapter.Poll(context.Background())

	adapter.fetch = fetchKeys("A")
	adapter.Poll(context.Background())

	if len(pub.published) != 1 {
		t.Errorf("Expected A published once, got %v", pub.published)
	}
}
