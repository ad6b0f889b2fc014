package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/storefront-kit/orderflow/internal/order/domain"
)

// ErrMalformedEvent marks an event that can never be processed; the
// consumer dead-letters it instead of retrying.
var ErrMalformedEvent = errors.New("malformed order event")

type Service struct {
	log      *slog.Logger
	registry ProcessedRegistry
	notifier Notifier
}

func NewService(log *slog.Logger, registry ProcessedRegistry, notifier Notifier) *Service {
	return &Service{log: log, registry: registry, notifier: notifier}
}

// HandleOrderPlaced sends the notification for an order exactly once per
// order number, no matter how often the event is redelivered. The mark
// is taken before sending and released again if sending fails, so a
// retry can claim it.
func (s *Service) HandleOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	if event.OrderNumber == "" {
		return fmt.Errorf("%w: empty order number", ErrMalformedEvent)
	}

	seen, err := s.registry.Seen(ctx, event.OrderNumber)
	if err != nil {
		return fmt.Errorf("processed check: %w", err)
	}
	if seen {
		s.log.Info("duplicate event skipped", "order_number", event.OrderNumber)
		return nil
	}

	if err := s.notifier.NotifyOrderPlaced(ctx, event.OrderNumber); err != nil {
		if ferr := s.registry.Forget(ctx, event.OrderNumber); ferr != nil {
			s.log.Error("failed to release processed mark", "order_number", event.OrderNumber, "err", ferr)
		}
		return fmt.Errorf("send notification: %w", err)
	}

	s.log.Info("order notification sent", "order_number", event.OrderNumber)
	return nil
}
