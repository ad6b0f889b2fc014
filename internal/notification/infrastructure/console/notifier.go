package console

import (
	"context"
	"log/slog"
)

// Notifier is the log-backed notification sender. It stands where a mail
// or push gateway integration would go; the delivery guarantees around
// it do not depend on the transport.
type Notifier struct {
	log *slog.Logger
}

func NewNotifier(log *slog.Logger) *Notifier {
	return &Notifier{log: log}
}

func (n *Notifier) NotifyOrderPlaced(ctx context.Context, orderNumber string) error {
	n.log.Info("notifying customer, order placed", "order_number", orderNumber)
	return nil
}
