package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/degreeplan/pkg/catalog"
	"github.com/Mindburn-Labs/degreeplan/pkg/config"

	_ "modernc.org/sqlite"
)

// openCatalogStore opens the catalog database: Postgres when DATABASE_URL is
// set, otherwise sqlite under the data directory.
func openCatalogStore(ctx context.Context, cfg *config.Config) (*sql.DB, *catalog.SQLStore, error) {
	driver, dsn, dialect := "postgres", cfg.DatabaseURL, catalog.DialectPostgres
	if cfg.LiteMode() {
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dsn = filepath.Join(cfg.DataDir, "degreeplan.db")
		driver, dialect = "sqlite", catalog.DialectSQLite
		slog.Default().DebugContext(ctx, "lite mode: using sqlite", "path", dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	store := catalog.NewSQLStore(db, dialect)
	if err := store.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, store, nil
}

// loadRelations reads the course catalog from a file when one is named,
// otherwise from the catalog database.
func loadRelations(ctx context.Context, cfg *config.Config, path string) (*catalog.Catalog, error) {
	if path == "" {
		path = cfg.CatalogPath
	}
	if path != "" {
		return catalog.LoadFile(path)
	}

	db, store, err := openCatalogStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	return store.Load(ctx)
}
