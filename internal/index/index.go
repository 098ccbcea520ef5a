// Package index opens the store.Index backend selected by configuration.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/statchunk/internal/config"
	"github.com/dgallion1/statchunk/internal/pathstore"
	"github.com/dgallion1/statchunk/internal/store"
	"github.com/dgallion1/statchunk/internal/store/badger"
	"github.com/dgallion1/statchunk/internal/store/postgres"
)

// Open returns the configured backend. The caller closes it.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Index, error) {
	switch cfg.StoreBackend {
	case config.BackendBadger:
		idx, err := badger.Open(cfg.BadgerPath, log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.BackendPostgres:
		idx, err := postgres.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.BackendPathstore:
		return pathstore.NewIndex(pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
