// Package duckdb writes profiles into a single DuckDB database file.
//
// Import this package with a blank identifier to register the format:
//
//	import _ "github.com/leapstack-labs/profq/internal/store/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/profq/internal/store"
	"github.com/leapstack-labs/profq/internal/store/sqlstore"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

const (
	// Name is the registered format name.
	Name = "duckdb"
	// Filename is the database file created in the output directory.
	Filename = "profile.duckdb"
)

func init() {
	store.Register(Name, func() store.Format { return New() })
}

// Format implements store.Format for DuckDB.
type Format struct {
	sqlstore.Writer
}

// New creates a DuckDB format writer.
func New() *Format {
	return &Format{}
}

// Name returns the registered format name.
func (f *Format) Name() string { return Name }

// Open connects to the database at path.
// Use ":memory:" as the path for an in-memory database.
func (f *Format) Open(ctx context.Context, path string) error {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	f.DB = db
	return nil
}

// Write copies the relations file into dir and materializes src into dir/profile.duckdb.
func (f *Format) Write(ctx context.Context, dir string, src store.Source, opts store.Options) error {
	f.Logger = opts.Log()
	if err := store.WriteRelations(dir, src.Relations()); err != nil {
		return err
	}
	if err := f.Open(ctx, filepath.Join(dir, Filename)); err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return f.Writer.Write(ctx, src, opts)
}
