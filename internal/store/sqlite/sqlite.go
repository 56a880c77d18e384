// Package sqlite writes profiles into a single SQLite database file.
//
// Import this package with a blank identifier to register the format:
//
//	import _ "github.com/leapstack-labs/profq/internal/store/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/profq/internal/store"
	"github.com/leapstack-labs/profq/internal/store/sqlstore"

	_ "modernc.org/sqlite" // sqlite driver
)

const (
	// Name is the registered format name.
	Name = "sqlite"
	// Filename is the database file created in the output directory.
	Filename = "profile.sqlite"
)

func init() {
	store.Register(Name, func() store.Format { return New() })
}

// Format implements store.Format for SQLite.
type Format struct {
	sqlstore.Writer
}

// New creates a SQLite format writer.
func New() *Format {
	return &Format{}
}

// Name returns the registered format name.
func (f *Format) Name() string { return Name }

// Open connects to the database at path.
func (f *Format) Open(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	f.DB = db
	return nil
}

// Write copies the relations file into dir and materializes src into dir/profile.sqlite.
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
