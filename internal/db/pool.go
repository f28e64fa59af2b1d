// Package db defines the shared database access interfaces. They are the
// intersection of *pgxpool.Pool and pgxmock.PgxPoolIface so that every
// store operation is unit-testable without a live database.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the connection-pool surface used by the store and the workers.
// Satisfied by *pgxpool.Pool and by pgxmock.PgxPoolIface.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Querier is the query surface shared by Pool and pgx.Tx. Store operations
// that must run inside a worker's lease transaction take a Querier so the
// caller decides the transaction boundary.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
