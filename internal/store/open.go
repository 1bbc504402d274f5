package store

import (
	"context"
	"fmt"

	"itemset-builder/internal/config"
)

// Open connects to the backend selected by cfg.StoreDriver and makes sure
// the schema exists. With recreate set, existing tables are dropped first.
func Open(ctx context.Context, cfg *config.Config, recreate bool) (EventStore, error) {
	var (
		s   EventStore
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverTurso:
		s, err = OpenTurso(ctx, cfg.TursoURL, cfg.TursoAuthToken)
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, err
	}

	if recreate {
		err = s.Reset(ctx)
	} else {
		err = s.Init(ctx)
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
