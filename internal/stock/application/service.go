package application

import (
	"context"
	"log/slog"

	"github.com/storefront-kit/orderflow/internal/stock/domain"
)

type Service struct {
	log  *slog.Logger
	repo StockRepository
}

func NewService(log *slog.Logger, repo StockRepository) *Service {
	return &Service{log: log, repo: repo}
}

// Check reports availability for every requested SKU, in request order.
// A SKU with no stock row is reported unavailable: an unknown SKU can
// never be promised.
func (s *Service) Check(ctx context.Context, skus []string) ([]domain.Availability, error) {
	items, err := s.repo.ItemsBySKU(ctx, skus)
	if err != nil {
		return nil, err
	}

	bySKU := make(map[string]domain.Item, len(items))
	for _, item := range items {
		bySKU[item.SKUCode] = item
	}

	results := make([]domain.Availability, 0, len(skus))
	for _, sku := range skus {
		results = append(results, domain.Availability{
			SKUCode:   sku,
			Available: bySKU[sku].Available(),
		})
	}
	return results, nil
}
