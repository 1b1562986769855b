package channelbus

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgListener implements the store-level notification primitive on Postgres.
// A dedicated connection carries LISTEN and WaitForNotification; pg_notify
// goes through a pool so publishes never contend with the listen loop.
type pgListener struct {
	conn *pgx.Conn
	pool *pgxpool.Pool
}

// dialPostgres opens the listen connection and the notify pool.
func dialPostgres(ctx context.Context, connString string) (*pgListener, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting listen connection: %w", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("creating notify pool: %w", err)
	}

	return &pgListener{conn: conn, pool: pool}, nil
}

func (l *pgListener) Listen(ctx context.Context, channel string) error {
	_, err := l.conn.Exec(ctx, "listen "+pgx.Identifier{channel}.Sanitize())
	if err != nil {
		return fmt.Errorf("listen %q: %w", channel, err)
	}
	return nil
}

func (l *pgListener) Unlisten(ctx context.Context, channel string) error {
	_, err := l.conn.Exec(ctx, "unlisten "+pgx.Identifier{channel}.Sanitize())
	if err != nil {
		return fmt.Errorf("unlisten %q: %w", channel, err)
	}
	return nil
}

func (l *pgListener) Notify(ctx context.Context, channel, payload string) error {
	_, err := l.pool.Exec(ctx, "select pg_notify($1, $2)", channel, payload)
	if err != nil {
		return fmt.Errorf("pg_notify %q: %w", channel, err)
	}
	return nil
}

func (l *pgListener) NextNotification(ctx context.Context) (string, string, error) {
	n, err := l.conn.WaitForNotification(ctx)
	if err != nil {
		return "", "", err
	}
	return n.Channel, n.Payload, nil
}

func (l *pgListener) Close(ctx context.Context) error {
	l.pool.Close()
	return l.conn.Close(ctx)
}
