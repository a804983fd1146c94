// Package producer runs the event-source adapters: fixed-interval polls of
// the upstream feeds, duplicate suppression across cycles, and per-event
// publishing to the Kafka topics.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"bitrag/internal/faulttolerance"
)

// Publisher sends one event payload to the bus.
type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

const publishTimeout = 5 * time.Second

// KafkaPublisher writes JSON payloads to a single Kafka topic. Each write is
// wrapped in the bounded retry policy; exhausting retries surfaces the error
// to the adapter, which counts and skips that event.
type KafkaPublisher struct {
	writer  *kafka.Writer
	retryer *faulttolerance.Retryer
}

// NewKafkaPublisher creates a publisher over writer.
func NewKafkaPublisher(writer *kafka.Writer, retryer *faulttolerance.Retryer) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		retryer: retryer,
	}
}

// Publish serializes payload as JSON and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	return p.retryer.Execute(ctx, func() error {
		writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := p.writer.WriteMessages(writeCtx, kafka.Message{Value: value}); err != nil {
			return fmt.Errorf("failed to send message to Kafka: %w", err)
		}
		return nil
	})
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
