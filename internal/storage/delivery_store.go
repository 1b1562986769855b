// Package storage persists delivery outcomes. The notification event itself
// is transient by design; the delivery log records only per-adapter attempt
// results for operators and the redelivery sweeper.
package storage

import (
	"context"
	"time"
)

// DeliveryEntry records one adapter's attempt at delivering one event.
type DeliveryEntry struct {
	ID            int64           `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	EventType     string          `json:"event_type"`
	Adapter       string          `json:"adapter"`
	Success       bool            `json:"success"`
	Reason        string          `json:"reason,omitempty"`
	StatusCode    int             `json:"status_code,omitempty"`
	Attempts      int             `json:"attempts"`
	Payload       []byte          `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DeliveryStore defines the interface for persisting delivery outcomes.
type DeliveryStore interface {
	// RecordDelivery inserts one delivery attempt.
	RecordDelivery(ctx context.Context, entry DeliveryEntry) error
	// ListDeliveries returns the most recent entries, up to limit.
	ListDeliveries(ctx context.Context, limit int) ([]DeliveryEntry, error)
	// ListFailed returns failed entries younger than since with fewer than
	// maxAttempts attempts, oldest first.
	ListFailed(ctx context.Context, since time.Time, maxAttempts, limit int) ([]DeliveryEntry, error)
	// MarkRetried updates an entry after a redelivery attempt.
	MarkRetried(ctx context.Context, id int64, success bool, reason string, statusCode int) error
}
