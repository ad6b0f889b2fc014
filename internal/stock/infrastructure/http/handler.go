package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/storefront-kit/orderflow/internal/stock/domain"
)

type StockService interface {
	Check(ctx context.Context, skus []string) ([]domain.Availability, error)
}

type Handler struct {
	log     *slog.Logger
	service StockService
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service StockService) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("stock-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/stock", h.checkStock)
	return r
}

// checkStock answers GET /api/stock?sku=a&sku=b with a per-SKU
// availability list.
func (h *Handler) checkStock(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CheckStock")
	defer span.End()

	skus := r.URL.Query()["sku"]
	if len(skus) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "invalid_request",
			"message": "at least one sku query parameter is required",
		})
		return
	}

	results, err := h.service.Check(ctx, skus)
	if err != nil {
		h.log.Error("stock check failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
