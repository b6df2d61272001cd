package core

import (
	"context"
	"fmt"

	"mchroma/internal/config"
	"mchroma/internal/infra/persistence/memory"
	"mchroma/internal/infra/persistence/postgres"
	"mchroma/internal/infra/persistence/sqlite"
	"mchroma/pkg/domain"
)

// StorageDriver identifies a session store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

// OpenSessionStore builds the store named by settings.Driver. An empty
// driver means memory.
func OpenSessionStore(ctx context.Context, settings config.StorageSettings) (domain.SessionStore, error) {
	driver := StorageDriver(settings.Driver)
	if driver == "" {
		driver = StorageMemory
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		s, err := sqlite.NewStore(ctx, settings.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, settings.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", settings.Driver)
	}
}
