package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront-kit/orderflow/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Save writes the order and all of its line items in one transaction.
// Either everything commits or nothing is visible.
func (r *Repository) Save(ctx context.Context, o domain.Order) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, total_cents, created_at) VALUES ($1,$2,$3) RETURNING id`,
		o.OrderNumber, o.TotalCents, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, domain.ErrDuplicateOrderNumber
		}
		return 0, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.LineItems {
		batch.Queue(
			`INSERT INTO order_line_items (order_id, sku_code, unit_price_cents, quantity) VALUES ($1,$2,$3,$4)`,
			id, item.SKUCode, item.UnitPriceCents, item.Quantity,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("insert line items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (r *Repository) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_number, total_cents, created_at FROM orders WHERE order_number=$1`,
		orderNumber,
	).Scan(&o.ID, &o.OrderNumber, &o.TotalCents, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT sku_code, unit_price_cents, quantity FROM order_line_items WHERE order_id=$1 ORDER BY id`,
		o.ID,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("select line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.SKUCode, &item.UnitPriceCents, &item.Quantity); err != nil {
			return domain.Order{}, fmt.Errorf("scan line item: %w", err)
		}
		o.LineItems = append(o.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("read line items: %w", err)
	}
	return o, nil
}
