// Package store provides relational access to users, scores, stats and
// rank history over a Postgres database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Sentinel kinds for store errors.
var (
	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("record not found")
)

// DB wraps a bun handle. Inside RunInTx the same type wraps the
// transaction, so repositories work unchanged in both scopes.
type DB struct {
	bun  bun.IDB
	root *bun.DB
}

// New opens a fresh connection pool for the given DSN. Every batch worker
// that needs isolation must call this itself rather than inherit a handle.
func New(ctx context.Context, dsn string) (*DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	return &DB{bun: db, root: db}, nil
}

// Close releases the underlying pool. No-op on a transaction-scoped DB.
func (d *DB) Close() error {
	if d.root == nil {
		return nil
	}
	return d.root.Close()
}

// RunInTx executes fn within a transaction. The per-user classification,
// aggregation and reconciliation unit commits or rolls back as a whole.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	return d.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{bun: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
