package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storefront-kit/orderflow/internal/order/domain"
	"github.com/storefront-kit/orderflow/pkg/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrderRepository struct {
	saveFunc        func(ctx context.Context, o domain.Order) (int64, error)
	getByNumberFunc func(ctx context.Context, orderNumber string) (domain.Order, error)
}

func (m *mockOrderRepository) Save(ctx context.Context, o domain.Order) (int64, error) {
	return m.saveFunc(ctx, o)
}

func (m *mockOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return m.getByNumberFunc(ctx, orderNumber)
}

type mockStockChecker struct {
	checkFunc func(ctx context.Context, skus []string) ([]string, error)
}

func (m *mockStockChecker) CheckStock(ctx context.Context, skus []string) ([]string, error) {
	return m.checkFunc(ctx, skus)
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, event domain.OrderPlaced) error
}

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	return m.publishFunc(ctx, event)
}

type mockJournal struct {
	recordFunc func(ctx context.Context, event domain.OrderPlaced, reason string) error
}

func (m *mockJournal) Record(ctx context.Context, event domain.OrderPlaced, reason string) error {
	return m.recordFunc(ctx, event, reason)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo OrderRepository, stock StockChecker, publisher EventPublisher, journal PublishJournal) *Service {
	svc := NewService(testLogger(), repo, stock, breaker.New(testLogger(), breaker.Settings{}), publisher, journal)
	svc.publishInterval = time.Millisecond
	return svc
}

func okItems() []domain.LineItem {
	return []domain.LineItem{{SKUCode: "iphone_15", UnitPriceCents: 150000, Quantity: 1}}
}

func TestService_PlaceOrder_AllAvailable(t *testing.T) {
	var saved []domain.Order
	var published []domain.OrderPlaced
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		saved = append(saved, o)
		return 7, nil
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return nil, nil
	}}
	publisher := &mockPublisher{publishFunc: func(ctx context.Context, event domain.OrderPlaced) error {
		published = append(published, event)
		return nil
	}}
	svc := newTestService(repo, stock, publisher, &mockJournal{})

	result, err := svc.PlaceOrder(context.Background(), okItems())

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)
	assert.NotEmpty(t, result.OrderNumber)

	require.Len(t, saved, 1)
	require.Len(t, published, 1)
	assert.Equal(t, result.OrderNumber, saved[0].OrderNumber)
	assert.Equal(t, result.OrderNumber, published[0].OrderNumber)
}

func TestService_PlaceOrder_UnavailableSKU(t *testing.T) {
	saves, publishes := 0, 0
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		saves++
		return 1, nil
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return []string{"iphone_15_pro"}, nil
	}}
	publisher := &mockPublisher{publishFunc: func(ctx context.Context, event domain.OrderPlaced) error {
		publishes++
		return nil
	}}
	svc := newTestService(repo, stock, publisher, &mockJournal{})

	result, err := svc.PlaceOrder(context.Background(), []domain.LineItem{
		{SKUCode: "iphone_15", UnitPriceCents: 150000, Quantity: 1},
		{SKUCode: "iphone_15_pro", UnitPriceCents: 180000, Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusStockRejected, result.Status)
	assert.Equal(t, []string{"iphone_15_pro"}, result.UnavailableSKUs)
	assert.Empty(t, result.OrderNumber)
	assert.Zero(t, saves)
	assert.Zero(t, publishes)
}

func TestService_PlaceOrder_InvalidRequestNeverChecksStock(t *testing.T) {
	checks := 0
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		checks++
		return nil, nil
	}}
	svc := newTestService(&mockOrderRepository{}, stock, &mockPublisher{}, &mockJournal{})

	result, err := svc.PlaceOrder(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	assert.Equal(t, "order must contain at least one line item", result.Reason)
	assert.Zero(t, checks)
}

func TestService_PlaceOrder_StockCheckFailureDefers(t *testing.T) {
	saves := 0
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		saves++
		return 1, nil
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return nil, errors.New("stock service timeout")
	}}
	svc := newTestService(repo, stock, &mockPublisher{}, &mockJournal{})

	result, err := svc.PlaceOrder(context.Background(), okItems())

	require.NoError(t, err)
	assert.Equal(t, StatusDeferred, result.Status)
	assert.NotEmpty(t, result.Reason)
	assert.Zero(t, saves)
}

func TestService_PlaceOrder_OpenCircuitShortCircuits(t *testing.T) {
	checks := 0
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		checks++
		return nil, errors.New("stock service timeout")
	}}
	svc := newTestService(&mockOrderRepository{}, stock, &mockPublisher{}, &mockJournal{})

	// Three consecutive timeouts open the circuit.
	for i := 0; i < 3; i++ {
		result, err := svc.PlaceOrder(context.Background(), okItems())
		require.NoError(t, err)
		require.Equal(t, StatusDeferred, result.Status)
	}
	require.Equal(t, 3, checks)
	require.Equal(t, breaker.Open, svc.guard.State())

	// The next request is deferred without touching the dependency.
	result, err := svc.PlaceOrder(context.Background(), okItems())
	require.NoError(t, err)
	assert.Equal(t, StatusDeferred, result.Status)
	assert.Equal(t, 3, checks)
}

func TestService_PlaceOrder_DistinctSKUsQueriedOnce(t *testing.T) {
	var queried []string
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		queried = skus
		return nil, nil
	}}
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 1, nil
	}}
	publisher := &mockPublisher{publishFunc: func(ctx context.Context, event domain.OrderPlaced) error {
		return nil
	}}
	svc := newTestService(repo, stock, publisher, &mockJournal{})

	_, err := svc.PlaceOrder(context.Background(), []domain.LineItem{
		{SKUCode: "iphone_15", UnitPriceCents: 150000, Quantity: 1},
		{SKUCode: "iphone_15", UnitPriceCents: 150000, Quantity: 2},
		{SKUCode: "pixel_8", UnitPriceCents: 90000, Quantity: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"iphone_15", "pixel_8"}, queried)
}

func TestService_PlaceOrder_StorageFailure(t *testing.T) {
	publishes := 0
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 0, errors.New("connection reset")
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return nil, nil
	}}
	publisher := &mockPublisher{publishFunc: func(ctx context.Context, event domain.OrderPlaced) error {
		publishes++
		return nil
	}}
	svc := newTestService(repo, stock, publisher, &mockJournal{})

	_, err := svc.PlaceOrder(context.Background(), okItems())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save order")
	assert.Zero(t, publishes)
}

func TestService_PlaceOrder_MissingGeneratedIDIsInternalError(t *testing.T) {
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 0, nil
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return nil, nil
	}}
	svc := newTestService(repo, stock, &mockPublisher{}, &mockJournal{})

	_, err := svc.PlaceOrder(context.Background(), okItems())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a generated id")
}

func TestService_PlaceOrder_PublishRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 1, nil
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return nil, nil
	}}
	publisher := &mockPublisher{publishFunc: func(ctx context.Context, event domain.OrderPlaced) error {
		attempts++
		if attempts < 3 {
			return errors.New("broker unavailable")
		}
		return nil
	}}
	journaled := 0
	journal := &mockJournal{recordFunc: func(ctx context.Context, event domain.OrderPlaced, reason string) error {
		journaled++
		return nil
	}}
	svc := newTestService(repo, stock, publisher, journal)

	result, err := svc.PlaceOrder(context.Background(), okItems())

	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)
	assert.Equal(t, 3, attempts)
	assert.Zero(t, journaled)
}

func TestService_PlaceOrder_PublishExhaustionJournalsButSucceeds(t *testing.T) {
	attempts := 0
	repo := &mockOrderRepository{saveFunc: func(ctx context.Context, o domain.Order) (int64, error) {
		return 1, nil
	}}
	stock := &mockStockChecker{checkFunc: func(ctx context.Context, skus []string) ([]string, error) {
		return nil, nil
	}}
	publisher := &mockPublisher{publishFunc: func(ctx context.Context, event domain.OrderPlaced) error {
		attempts++
		return errors.New("broker unavailable")
	}}
	var journaledEvent domain.OrderPlaced
	var journaledReason string
	journal := &mockJournal{recordFunc: func(ctx context.Context, event domain.OrderPlaced, reason string) error {
		journaledEvent = event
		journaledReason = reason
		return nil
	}}
	svc := newTestService(repo, stock, publisher, journal)

	result, err := svc.PlaceOrder(context.Background(), okItems())

	// The order is committed; exhausted delivery must not fail the request.
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, result.Status)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, result.OrderNumber, journaledEvent.OrderNumber)
	assert.Equal(t, "broker unavailable", journaledReason)
}

func TestService_GetOrder(t *testing.T) {
	want := domain.Order{ID: 3, OrderNumber: "ord-3", TotalCents: 100}
	repo := &mockOrderRepository{getByNumberFunc: func(ctx context.Context, orderNumber string) (domain.Order, error) {
		if orderNumber == "ord-3" {
			return want, nil
		}
		return domain.Order{}, domain.ErrOrderNotFound
	}}
	svc := newTestService(repo, &mockStockChecker{}, &mockPublisher{}, &mockJournal{})

	got, err := svc.GetOrder(context.Background(), "ord-3")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
