package jobs

import (
	"context"

	"github.com/okian/rankforge/internal/adapters/store"
)

// sqlStore adapts store.DB to the Store interface: the embedded handle
// provides every query method, and RunInTx re-wraps the transaction-scoped
// handle so callers stay on the interface inside the transaction.
type sqlStore struct {
	*store.DB
}

// WrapStore adapts a relational store handle for job consumption.
func WrapStore(db *store.DB) Store {
	return sqlStore{DB: db}
}

func (s sqlStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		return fn(ctx, sqlStore{DB: tx})
	})
}
