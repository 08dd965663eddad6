// Package store opens the configured client state backend.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"sesamum.org/internal/config"
	"sesamum.org/internal/migrate"
	"sesamum.org/internal/obs"
	"sesamum.org/internal/storage"
	"sesamum.org/internal/store/pg"
	"sesamum.org/internal/store/sqlite"
)

// Backend is an opened state store.
type Backend struct {
	KV storage.KV
	// DB is the underlying handle for readiness checks; nil for memory.
	DB    *sql.DB
	close func() error
}

func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open opens the backend selected by cfg.StateBackend. The postgres
// backend is migrated to the latest schema before use.
func Open(ctx context.Context, cfg config.Config) (*Backend, error) {
	switch cfg.StateBackend {
	case "", "memory":
		return &Backend{KV: storage.NewMemory()}, nil
	case "sqlite":
		path := cfg.StatePath
		if path == "" {
			var err error
			if path, err = sqlite.DefaultPath(); err != nil {
				return nil, err
			}
		}
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		obs.Info("state backend opened", map[string]any{"backend": "sqlite", "path": path})
		return &Backend{KV: s, DB: s.DB(), close: s.Close}, nil
	case "postgres":
		s, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres state: %w", err)
		}
		if err := migrate.NewManager(s.DB(), migrate.Embedded()).Up(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate postgres state: %w", err)
		}
		obs.Info("state backend opened", map[string]any{"backend": "postgres"})
		return &Backend{KV: s, DB: s.DB(), close: s.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported state backend %q", cfg.StateBackend)
	}
}
