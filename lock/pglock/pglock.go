// Package pglock implements lock.Locker with Postgres session advisory
// locks, so processes sharing a database serialize simplification per group.
package pglock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/tally/lock"
)

var _ lock.Locker = (*Locker)(nil)

// Locker holds one pooled connection per acquired key for as long as the
// key is held; advisory locks belong to the session that took them.
type Locker struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{pool: pool, logger: logger}
}

// Connect opens a pool for databaseURL and verifies it.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Locker, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pglock: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pglock: ping: %w", err)
	}
	return New(pool, logger), nil
}

// Lock implements lock.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pglock: acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pglock: lock %s: %w", key, err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
			// Closing the session drops every advisory lock it holds.
			l.logger.Warn("pglock: unlock failed, closing session", "key", key, "error", err)
			_ = conn.Conn().Close(ctx) //nolint:errcheck // pool discards the closed conn
		}
		conn.Release()
	}, nil
}

// Close closes the underlying pool.
func (l *Locker) Close() {
	l.pool.Close()
}
