package application

import "context"

// ProcessedRegistry remembers which order numbers were already handled
// so redelivered events become no-ops.
type ProcessedRegistry interface {
	Seen(ctx context.Context, orderNumber string) (bool, error)
	Forget(ctx context.Context, orderNumber string) error
}

type Notifier interface {
	NotifyOrderPlaced(ctx context.Context, orderNumber string) error
}
