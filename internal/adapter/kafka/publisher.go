package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stuartgraham/metoffice2influx/internal/config"
	"github.com/stuartgraham/metoffice2influx/internal/domain"
)

// Publisher mirrors written measurement points to a Kafka topic, one message
// per point. It implements pipeline.Mirror.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured mirror topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish serializes the batch and sends it in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, batch domain.Batch) error {
	if len(batch) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(batch))
	for i := range batch {
		msg, err := serializeToMessage(batch[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish points: %w", err)
	}
	p.logger.Debug("points mirrored", "topic", p.writer.Topic, "points", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a MeasurementPoint into a Kafka message keyed
// by its observation time.
func serializeToMessage(point domain.MeasurementPoint) (kafkago.Message, error) {
	data, err := json.Marshal(point)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize point: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(point.Timestamp.UTC().Format(time.RFC3339)),
		Value: data,
		Time:  point.Timestamp,
		Headers: []kafkago.Header{
			{Key: "measurement", Value: []byte(point.Name)},
		},
	}, nil
}
