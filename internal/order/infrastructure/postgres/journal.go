package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storefront-kit/orderflow/internal/order/domain"
	"github.com/storefront-kit/orderflow/pkg/redelivery"
)

// FailureJournal persists events whose publish retries were exhausted
// and hands them out in leased batches to the redelivery relay.
type FailureJournal struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewFailureJournal(log *slog.Logger, pool *pgxpool.Pool) *FailureJournal {
	return &FailureJournal{log: log, pool: pool}
}

func (j *FailureJournal) Record(ctx context.Context, event domain.OrderPlaced, reason string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = j.pool.Exec(ctx,
		`INSERT INTO publish_failures (order_number, payload, status, last_error) VALUES ($1,$2,'pending',$3)`,
		event.OrderNumber, payload, reason,
	)
	if err != nil {
		return fmt.Errorf("insert publish failure: %w", err)
	}
	j.log.Warn("publish failure journaled", "order_number", event.OrderNumber)
	return nil
}

// LockBatch claims up to batchSize journaled events for this relay.
// Rows whose previous lease expired are claimed again, so a crashed
// relay never strands an event in in_progress.
func (j *FailureJournal) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]redelivery.Event, error) {
	tx, err := j.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, order_number, payload, retry_count, last_error, created_at
		FROM publish_failures
		WHERE status = 'pending'
		   OR (status = 'in_progress' AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}

	var events []redelivery.Event
	for rows.Next() {
		var e redelivery.Event
		if err := rows.Scan(&e.ID, &e.OrderNumber, &e.Payload, &e.RetryCount, &e.LastError, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		e.Status = redelivery.StatusInProgress
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	_, err = tx.Exec(ctx,
		`UPDATE publish_failures SET status='in_progress', relay_id=$1, lease_until=now() + $2::interval WHERE id = ANY($3)`,
		relayID, lease.String(), ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lease batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return events, nil
}

func (j *FailureJournal) MarkSent(ctx context.Context, ids []int64) error {
	_, err := j.pool.Exec(ctx, `UPDATE publish_failures SET status='sent' WHERE id = ANY($1)`, ids)
	return err
}

// maxRelayAttempts bounds how often the relay requeues one event before
// parking it as failed for operator attention.
const maxRelayAttempts = 10

func (j *FailureJournal) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := j.pool.Exec(ctx, `
		UPDATE publish_failures
		SET status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    last_error = $2,
		    retry_count = retry_count + 1
		WHERE id = $1
	`, id, errMsg, maxRelayAttempts)
	return err
}
