package application

import (
	"context"

	"github.com/storefront-kit/orderflow/internal/stock/domain"
)

type StockRepository interface {
	// ItemsBySKU returns the stock items matching skus. SKUs without a
	// stock row are simply absent from the result.
	ItemsBySKU(ctx context.Context, skus []string) ([]domain.Item, error)
}
