package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/storefront-kit/orderflow/internal/order/domain"
	"github.com/storefront-kit/orderflow/pkg/breaker"
)

type PlacementStatus string

const (
	StatusCreated       PlacementStatus = "created"
	StatusRejected      PlacementStatus = "rejected"
	StatusStockRejected PlacementStatus = "stock_rejected"
	StatusDeferred      PlacementStatus = "deferred"
)

// PlacementResult is the terminal outcome of one placement request.
// Status distinguishes a confirmed stock rejection from a deferred
// outcome where stock could not be determined at all.
type PlacementResult struct {
	Status          PlacementStatus
	OrderNumber     string
	UnavailableSKUs []string
	Reason          string
}

type Service struct {
	log       *slog.Logger
	repo      OrderRepository
	stock     StockChecker
	guard     *breaker.Breaker
	publisher EventPublisher
	journal   PublishJournal

	publishRetries  uint64
	publishInterval time.Duration
}

func NewService(log *slog.Logger, repo OrderRepository, stock StockChecker, guard *breaker.Breaker, publisher EventPublisher, journal PublishJournal) *Service {
	return &Service{
		log:             log,
		repo:            repo,
		stock:           stock,
		guard:           guard,
		publisher:       publisher,
		journal:         journal,
		publishRetries:  3,
		publishInterval: 200 * time.Millisecond,
	}
}

// PlaceOrder runs one placement request to a terminal outcome: validate,
// check stock through the circuit breaker, persist, publish. A non-nil
// error means the request failed internally after stock was confirmed;
// every other outcome is reported through the result status.
func (s *Service) PlaceOrder(ctx context.Context, items []domain.LineItem) (PlacementResult, error) {
	order, err := domain.NewOrder(items)
	if err != nil {
		return PlacementResult{Status: StatusRejected, Reason: err.Error()}, nil
	}

	skus := order.SKUCodes()
	var unavailable []string
	err = s.guard.Do(ctx, func(ctx context.Context) error {
		var checkErr error
		unavailable, checkErr = s.stock.CheckStock(ctx, skus)
		return checkErr
	})
	if err != nil {
		// Circuit open or the call itself failed. No inline retry here:
		// retrying against a failing dependency only amplifies the load.
		s.log.Warn("stock check could not be completed", "order_number", order.OrderNumber, "err", err)
		return PlacementResult{
			Status: StatusDeferred,
			Reason: "stock availability could not be determined, retry later",
		}, nil
	}
	if len(unavailable) > 0 {
		s.log.Info("order rejected, skus unavailable", "order_number", order.OrderNumber, "skus", unavailable)
		return PlacementResult{Status: StatusStockRejected, UnavailableSKUs: unavailable}, nil
	}

	id, err := s.repo.Save(ctx, order)
	if err != nil {
		return PlacementResult{}, fmt.Errorf("save order: %w", err)
	}
	if id <= 0 {
		return PlacementResult{}, fmt.Errorf("order %s persisted without a generated id", order.OrderNumber)
	}
	order.ID = id
	s.log.Info("order persisted", "order_number", order.OrderNumber, "order_id", id, "total_cents", order.TotalCents)

	// The order is committed from here on. Publishing is best-effort with
	// bounded retries and must not fail the request or roll anything back.
	s.publishPlaced(ctx, domain.OrderPlaced{OrderNumber: order.OrderNumber})

	return PlacementResult{Status: StatusCreated, OrderNumber: order.OrderNumber}, nil
}

func (s *Service) GetOrder(ctx context.Context, orderNumber string) (domain.Order, error) {
	return s.repo.GetByNumber(ctx, orderNumber)
}

// publishPlaced delivers the event with exponential backoff. The context
// is detached from request cancellation: a client disconnect must not
// abandon delivery of an already-committed order's event.
func (s *Service) publishPlaced(ctx context.Context, event domain.OrderPlaced) {
	ctx = context.WithoutCancel(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.publishInterval
	err := backoff.Retry(func() error {
		return s.publisher.PublishOrderPlaced(ctx, event)
	}, backoff.WithMaxRetries(bo, s.publishRetries))
	if err == nil {
		s.log.Info("order event published", "order_number", event.OrderNumber)
		return
	}

	s.log.Error("order event delivery failed, journaling for redelivery",
		"order_number", event.OrderNumber, "err", err)
	if jerr := s.journal.Record(ctx, event, err.Error()); jerr != nil {
		s.log.Error("publish journal write failed, event needs manual redelivery",
			"order_number", event.OrderNumber, "err", jerr)
	}
}
