package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-kit/orderflow/internal/order/application"
	"github.com/storefront-kit/orderflow/internal/order/domain"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, items []domain.LineItem) (application.PlacementResult, error)
	GetOrder(ctx context.Context, orderNumber string) (domain.Order, error)
}

type Handler struct {
	log     *slog.Logger
	service OrderService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service OrderService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/orders", h.placeOrder)
	r.Get("/api/orders/{orderNumber}", h.getOrder)
	return r
}

type placeOrderReq struct {
	LineItems []domain.LineItem `json:"line_items"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}

	result, err := h.service.PlaceOrder(ctx, req.LineItems)
	if err != nil {
		h.log.Error("place order failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "order could not be processed")
		return
	}

	switch result.Status {
	case application.StatusCreated:
		writeJSON(w, http.StatusCreated, map[string]string{"order_number": result.OrderNumber})
	case application.StatusRejected:
		writeError(w, http.StatusBadRequest, "invalid_request", result.Reason)
	case application.StatusStockRejected:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            "stock_rejected",
			"unavailable_skus": result.UnavailableSKUs,
		})
	case application.StatusDeferred:
		writeError(w, http.StatusServiceUnavailable, "stock_unconfirmed", result.Reason)
	default:
		h.log.Error("unknown placement status", "status", string(result.Status))
		writeError(w, http.StatusInternalServerError, "internal", "order could not be processed")
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	orderNumber := chi.URLParam(r, "orderNumber")
	order, err := h.service.GetOrder(ctx, orderNumber)
	if errors.Is(err, domain.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "no order with this order number")
		return
	}
	if err != nil {
		h.log.Error("get order failed", "order_number", orderNumber, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "order could not be loaded")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
