package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/config"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces chart payloads to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes chart payloads in a single WriteMessages call.
// Payloads are keyed by dataset so updates for one dataset stay ordered.
func (w *Writer) LoadBatch(ctx context.Context, payloads []domain.ChartPayload) error {
	if len(payloads) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(payloads))
	for i := range payloads {
		msg, err := serializeToMessage(payloads[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write chart payloads: %w", err)
	}
	w.logger.Debug("loaded batch", "size", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ChartPayload into a Kafka message.
func serializeToMessage(payload domain.ChartPayload) (kafkago.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize chart payload: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(payload.Dataset),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset", Value: []byte(payload.Dataset)},
			{Key: "series_count", Value: []byte(strconv.Itoa(len(payload.Series)))},
			{Key: "processed_at", Value: []byte(payload.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
