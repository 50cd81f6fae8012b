package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/spaceapi-explorer/internal/config"
	"github.com/couchcryptid/spaceapi-explorer/internal/domain"
)

// Writer publishes status snapshots to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes all statuses in a single WriteMessages call.
// Messages are keyed by space name so snapshots of one space stay on one partition.
func (w *Writer) LoadBatch(ctx context.Context, statuses []domain.SpaceStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(statuses))
	for i := range statuses {
		msg, err := serializeToMessage(statuses[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), w.writer.Topic, err)
	}
	w.logger.Debug("statuses published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SpaceStatus into a Kafka message.
func serializeToMessage(status domain.SpaceStatus) (kafkago.Message, error) {
	data, err := json.Marshal(status)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize status of %q: %w", status.Space, err)
	}
	return kafkago.Message{
		Key:   []byte(status.Space),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "api_version", Value: []byte(status.Version.String())},
			{Key: "fetched_at", Value: []byte(status.FetchedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
