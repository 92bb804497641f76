package vectorstore

import (
	"context"
	"fmt"

	"github.com/dusk-indust/queryroute/internal/config"
)

// Open returns the store selected by naive_rag.store.
func Open(ctx context.Context, cfg config.BackendConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemStore(), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "queryroute.db"
		}
		return OpenSQLStore(ctx, "sqlite", dsn)
	case "postgres":
		return OpenSQLStore(ctx, "postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("vectorstore: unknown store %q", cfg.Store)
	}
}
