package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the slice of *pgxpool.Pool that Store actually uses. Depending
// on an interface instead of the concrete pool lets tests substitute
// pgxmock's mock pool (see bridge_test.go), in the shape of
// Hola-to-network_logistics_problem's repository.PostgresSimulationRepository.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewForTesting builds a Store around any dbtx-shaped pool, letting other
// packages' tests substitute pgxmock without a live database (see
// internal/loops's *_test.go files).
func NewForTesting(pool dbtx) *Store {
	return &Store{pool: pool}
}
