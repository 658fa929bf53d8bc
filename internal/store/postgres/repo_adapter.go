package postgres

import (
	"context"

	"github.com/torqspark/dedupe-massive-wordlists/internal/store"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid a live server.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to the store.Store interface, adding a
// Close method that calls the cleanup function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close implements store.Store.Close.
func (w *wrappedRepo) Close() error {
	if w.closeFn != nil {
		w.closeFn()
	}
	return nil
}

// Ensure wrappedRepo satisfies the interface at compile time.
var _ store.Store = (*wrappedRepo)(nil)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:   cfg.DSN,
			Table: cfg.Table,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
