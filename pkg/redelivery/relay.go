package redelivery

import (
	"context"
	"log/slog"
	"time"
)

// Store provides leased access to journaled events. LockBatch must hand
// each pending event to at most one relay at a time; events whose lease
// expired count as pending again.
type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type Producer interface {
	PublishRaw(ctx context.Context, key string, payload []byte) error
}

type Relay struct {
	log       *slog.Logger
	store     Store
	producer  Producer
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

func NewRelay(log *slog.Logger, store Store, producer Producer, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		producer:  producer,
		relayID:   relayID,
		batchSize: 100,
		interval:  5 * time.Second,
		lease:     30 * time.Second,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("redelivery relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

func (r *Relay) sweep(ctx context.Context) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("redelivery lock batch failed", "err", err)
		return
	}
	if len(events) == 0 {
		return
	}

	sent := make([]int64, 0, len(events))
	for _, e := range events {
		if err := r.producer.PublishRaw(ctx, e.OrderNumber, e.Payload); err != nil {
			r.log.Error("redelivery publish failed", "event_id", e.ID, "order_number", e.OrderNumber, "err", err)
			if err := r.store.MarkFailed(ctx, e.ID, err.Error()); err != nil {
				r.log.Error("redelivery mark failed errored", "event_id", e.ID, "err", err)
			}
			continue
		}
		r.log.Info("journaled event redelivered", "event_id", e.ID, "order_number", e.OrderNumber)
		sent = append(sent, e.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			r.log.Error("redelivery mark sent failed", "err", err)
		}
	}
}
