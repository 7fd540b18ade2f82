// Package store is the bridge store (C4): the durable set of bridge
// records, the seen-IP ledger, and the per-group delay table. All access
// is hand-scanned parameterized SQL against a pgxpool.Pool, in the shape
// of wisbric-nightowl's pkg/apikey/store.go and pkg/incident/store.go —
// a thin Store struct wrapping the pool, no ORM, no generated query layer.
//
// Schema is assumed to already exist (spec.md §1 lists "the Postgres
// schema evolution" as an out-of-scope external collaborator); see
// schema.sql for the three tables this package expects.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates the shared connection pool. spec.md §5: "a small
// connection pool (≈6, lazy, 15-second acquire and idle timeouts)."
func NewPool(ctx context.Context, databaseURL string, poolSize int, acquireTimeout, idleTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 6
	}
	cfg.MaxConns = int32(poolSize)
	cfg.MaxConnIdleTime = idleTimeout
	// Lazy: no connection is dialled until first use. acquireTimeout is
	// not applied to the pool; a wait for a free connection is bounded
	// only by the caller's own context deadline, if it has one.
	cfg.HealthCheckPeriod = idleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	return pool, nil
}
