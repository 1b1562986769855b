package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDeliveryStore implements DeliveryStore backed by Postgres.
type PostgresDeliveryStore struct {
	pool *pgxpool.Pool
}

// NewPostgresDeliveryStore returns a new PostgresDeliveryStore.
func NewPostgresDeliveryStore(pool *pgxpool.Pool) *PostgresDeliveryStore {
	return &PostgresDeliveryStore{pool: pool}
}

// RecordDelivery inserts a delivery attempt record.
func (s *PostgresDeliveryStore) RecordDelivery(ctx context.Context, entry DeliveryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_log
			(correlation_id, event_type, adapter, success, reason, status_code, attempts, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.CorrelationID, entry.EventType, entry.Adapter, entry.Success,
		entry.Reason, entry.StatusCode, max(entry.Attempts, 1), entry.Payload,
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}
	return nil
}

// ListDeliveries returns the most recent entries ordered by created_at descending.
func (s *PostgresDeliveryStore) ListDeliveries(ctx context.Context, limit int) ([]DeliveryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, correlation_id, event_type, adapter, success, reason,
		       status_code, attempts, created_at, updated_at
		FROM delivery_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying delivery log: %w", err)
	}
	defer rows.Close()

	var entries []DeliveryEntry
	for rows.Next() {
		var e DeliveryEntry
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.EventType, &e.Adapter,
			&e.Success, &e.Reason, &e.StatusCode, &e.Attempts,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery log rows: %w", err)
	}
	return entries, nil
}

// ListFailed returns failed entries eligible for redelivery, oldest first.
func (s *PostgresDeliveryStore) ListFailed(
	ctx context.Context, since time.Time, maxAttempts, limit int,
) ([]DeliveryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, correlation_id, event_type, adapter, success, reason,
		       status_code, attempts, payload, created_at, updated_at
		FROM delivery_log
		WHERE NOT success AND attempts < $1 AND created_at >= $2
		ORDER BY created_at ASC
		LIMIT $3`, maxAttempts, since, limit)
	if err != nil {
		return nil, fmt.Errorf("querying failed deliveries: %w", err)
	}
	defer rows.Close()

	var entries []DeliveryEntry
	for rows.Next() {
		var e DeliveryEntry
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.EventType, &e.Adapter,
			&e.Success, &e.Reason, &e.StatusCode, &e.Attempts, &e.Payload,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning failed delivery row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating failed delivery rows: %w", err)
	}
	return entries, nil
}

// MarkRetried bumps the attempt count and records the latest outcome.
func (s *PostgresDeliveryStore) MarkRetried(
	ctx context.Context, id int64, success bool, reason string, statusCode int,
) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE delivery_log
		SET success = $2, reason = $3, status_code = $4,
		    attempts = attempts + 1, updated_at = now()
		WHERE id = $1`, id, success, reason, statusCode)
	if err != nil {
		return fmt.Errorf("updating delivery %d: %w", id, err)
	}
	return nil
}
