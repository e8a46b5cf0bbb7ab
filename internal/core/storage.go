package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"scrumcore/internal/cache"
	"scrumcore/internal/infra/blob"
	blobfs "scrumcore/internal/infra/blob/fs"
	blobmemory "scrumcore/internal/infra/blob/memory"
	blobs3 "scrumcore/internal/infra/blob/s3"
	"scrumcore/internal/infra/persistence/memory"
	"scrumcore/internal/infra/persistence/postgres"
	"scrumcore/internal/infra/persistence/sqlite"
	"scrumcore/pkg/domain"
)

// OpenPersistentStore selects a storage backend from process environment.
//
//	SCRUMCORE_STORAGE_DRIVER: memory | sqlite | postgres (default sqlite)
//	SCRUMCORE_SQLITE_PATH: database file for the sqlite driver
//	SCRUMCORE_POSTGRES_DSN: connection string for the postgres driver
func OpenPersistentStore(engine *RulesEngine) (domain.PersistentStore, error) {
	if engine == nil {
		engine = DefaultRulesEngine()
	}
	driver := os.Getenv("SCRUMCORE_STORAGE_DRIVER")
	switch driver {
	case "", "sqlite":
		return sqlite.NewStore(os.Getenv("SCRUMCORE_SQLITE_PATH"), engine)
	case "postgres":
		return postgres.NewStore(os.Getenv("SCRUMCORE_POSTGRES_DSN"), engine)
	case "memory":
		return memory.NewStore(engine), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// OpenStateCache selects a facet cache backend from process environment.
// Networked backends are wrapped so an unreachable cache degrades to
// recompute-only instead of failing operations.
//
//	SCRUMCORE_CACHE_DRIVER: memory | redis | none (default memory)
func OpenStateCache(logger *slog.Logger) (cache.Client, error) {
	driver := os.Getenv("SCRUMCORE_CACHE_DRIVER")
	switch driver {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		rc, err := cache.OpenRedisFromEnv()
		if err != nil {
			return nil, err
		}
		return cache.NewDegrading(rc, logger), nil
	case "none":
		return cache.Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}
}

// OpenBlobStore selects the export artifact backend from process environment.
//
//	SCRUMCORE_BLOB_DRIVER: fs | s3 | memory (default fs)
//	SCRUMCORE_BLOB_FS_ROOT: artifact directory for the fs driver
func OpenBlobStore(ctx context.Context) (blob.Store, error) {
	driver := os.Getenv("SCRUMCORE_BLOB_DRIVER")
	switch driver {
	case "", "fs":
		return blobfs.New(os.Getenv("SCRUMCORE_BLOB_FS_ROOT"))
	case "s3":
		return blobs3.OpenFromEnv(ctx)
	case "memory":
		return blobmemory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", driver)
	}
}
