package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTaskStore updates task nodes in the planning service's schema. The
// planning service owns these tables; no migration here creates them, and a
// missing table surfaces as a query error at call time.
type PostgresTaskStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskStore returns a task store backed by the shared database.
func NewPostgresTaskStore(pool *pgxpool.Pool) *PostgresTaskStore {
	return &PostgresTaskStore{pool: pool}
}

// CompleteTask marks the task node completed.
func (s *PostgresTaskStore) CompleteTask(ctx context.Context, taskID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE task_nodes SET status = 'completed', updated_at = now() WHERE id = $1`, taskID)
	if err != nil {
		return fmt.Errorf("completing task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s not found", taskID)
	}
	return nil
}

// AppendProgress adds a progress note to the task's history.
func (s *PostgresTaskStore) AppendProgress(ctx context.Context, taskID, note string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO task_progress (task_id, note, created_at) VALUES ($1, $2, now())`, taskID, note)
	if err != nil {
		return fmt.Errorf("appending progress to task %s: %w", taskID, err)
	}
	return nil
}
