package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront-kit/orderflow/internal/stock/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) ItemsBySKU(ctx context.Context, skus []string) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT sku_code, quantity FROM stock_items WHERE sku_code = ANY($1)`, skus)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0, len(skus))
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.SKUCode, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read stock rows: %w", err)
	}
	return items, nil
}
