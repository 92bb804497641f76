package graph

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/queryroute/internal/config"
)

// Open returns the store selected by graph_rag.store. The kuzu store lives
// in <data_path>/kuzu, or in memory when no data path is set.
func Open(cfg config.BackendConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemStore(), nil
	case "kuzu":
		var (
			s   *KuzuStore
			err error
		)
		if cfg.DataPath == "" {
			s, err = NewKuzuStore()
		} else {
			s, err = NewKuzuFileStore(filepath.Join(cfg.DataPath, "kuzu"))
		}
		if err != nil {
			return nil, err
		}
		if err := s.InitSchema(context.Background()); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("graph: unknown store %q", cfg.Store)
	}
}
