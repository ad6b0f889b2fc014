package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-kit/orderflow/internal/notification/application"
	"github.com/storefront-kit/orderflow/internal/order/domain"
	"github.com/storefront-kit/orderflow/pkg/tracing"
)

type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type deadLetterer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type orderPlacedHandler interface {
	HandleOrderPlaced(ctx context.Context, event domain.OrderPlaced) error
}

// Consumer drives the notification group over the order events topic.
// A message is committed only after it was handled or dead-lettered;
// bounded retries plus the dead-letter topic keep one poison message
// from blocking the group.
type Consumer struct {
	log     *slog.Logger
	reader  messageSource
	dlq     deadLetterer
	handler orderPlacedHandler
	tracer  trace.Tracer

	maxTries      int
	retryInterval time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group, dlqTopic string, handler orderPlacedHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	return &Consumer{
		log:           log,
		reader:        reader,
		dlq:           dlq,
		handler:       handler,
		tracer:        otel.Tracer("notification-consumer"),
		maxTries:      3,
		retryInterval: 250 * time.Millisecond,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	defer c.dlq.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderPlaced")
	defer span.End()

	var event domain.OrderPlaced
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.log.Error("unmarshal failed, dead-lettering", "topic", msg.Topic, "offset", msg.Offset, "err", err)
		c.finish(ctx, msgCtx, msg, err)
		return
	}

	err := c.handleWithRetry(msgCtx, event)
	if err == nil {
		c.commit(ctx, msg)
		return
	}
	if ctx.Err() != nil {
		// Shutting down mid-message: leave it uncommitted so the broker
		// redelivers it to the next group member.
		return
	}
	c.log.Error("event handling exhausted retries, dead-lettering",
		"order_number", event.OrderNumber, "offset", msg.Offset, "err", err)
	c.finish(ctx, msgCtx, msg, err)
}

func (c *Consumer) handleWithRetry(ctx context.Context, event domain.OrderPlaced) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxTries-1)), ctx)

	return backoff.Retry(func() error {
		err := c.handler.HandleOrderPlaced(ctx, event)
		if errors.Is(err, application.ErrMalformedEvent) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// finish dead-letters the message and commits it. If the dead-letter
// write fails the commit is skipped, trading a duplicate for the
// guarantee that no event disappears.
func (c *Consumer) finish(ctx, msgCtx context.Context, msg kafka.Message, cause error) {
	headers := append(msg.Headers,
		kafka.Header{Key: "dlq_error", Value: []byte(cause.Error())},
		kafka.Header{Key: "dlq_source_topic", Value: []byte(msg.Topic)},
	)
	out := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := c.dlq.WriteMessages(msgCtx, out); err != nil {
		c.log.Error("dead letter write failed, leaving message uncommitted", "offset", msg.Offset, "err", err)
		return
	}
	c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Error("offset commit failed", "topic", msg.Topic, "offset", msg.Offset, "err", err)
	}
}
