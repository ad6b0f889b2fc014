package application

import (
	"context"

	"github.com/storefront-kit/orderflow/internal/order/domain"
)

type OrderRepository interface {
	// Save persists the order and its line items atomically and returns
	// the generated order id.
	Save(ctx context.Context, o domain.Order) (int64, error)
	GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
}

type StockChecker interface {
	// CheckStock returns the subset of skus that cannot be promised.
	// An empty result means every SKU is available.
	CheckStock(ctx context.Context, skus []string) ([]string, error)
}

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error
}

type PublishJournal interface {
	// Record journals an event whose publish retries were exhausted so
	// the redelivery relay can pick it up later.
	Record(ctx context.Context, event domain.OrderPlaced, reason string) error
}
