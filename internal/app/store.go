package app

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/cafe-pos/internal/domain/order"
	"github.com/xenking/cafe-pos/internal/domain/settings"
	"github.com/xenking/cafe-pos/internal/storage"
	"github.com/xenking/cafe-pos/internal/storage/bolt"
	"github.com/xenking/cafe-pos/internal/storage/postgres"
)

// Store is the document store the application runs on.
type Store interface {
	order.Store
	storage.Viewer
	Settings() settings.Repository
	Ping(ctx context.Context) error
	Clear(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*bolt.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// OpenStore opens the store selected by cfg. Postgres schemas are migrated
// before the store is returned.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverBolt:
		s, err := bolt.Open(cfg.Path, cfg.LockTimeout)
		if err != nil {
			return nil, errors.Wrap(err, "open bolt store")
		}
		return s, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewStore(pool), nil
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}
}
