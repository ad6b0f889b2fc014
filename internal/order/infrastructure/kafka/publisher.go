package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/storefront-kit/orderflow/internal/order/domain"
	"github.com/storefront-kit/orderflow/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher appends order events to the event topic. Messages are keyed
// by order number so all events for one order land on one partition, and
// the writer waits for all replicas to ack before reporting success.
type Publisher struct {
	log    *slog.Logger
	writer messageWriter
	topic  string
}

func NewPublisher(log *slog.Logger, brokers []string, topic string) *Publisher {
	return &Publisher{
		log: log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
		topic: topic,
	}
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.PublishRaw(ctx, event.OrderNumber, payload)
}

// PublishRaw writes an already-serialized event payload. The redelivery
// relay uses it to re-emit journaled payloads byte for byte.
func (p *Publisher) PublishRaw(ctx context.Context, key string, payload []byte) error {
	headers := []kafka.Header{{Key: "event_type", Value: []byte("OrderPlaced")}}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: tracing.InjectKafkaHeaders(ctx, headers),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	p.log.Debug("event written", "topic", p.topic, "key", key)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
