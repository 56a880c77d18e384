// Package tsdb writes profiles in their native layout: a relations file plus
// one '@'-delimited file per table, optionally gzipped.
//
// Import this package with a blank identifier to register the format:
//
//	import _ "github.com/leapstack-labs/profq/internal/store/tsdb"
package tsdb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/leapstack-labs/profq/internal/profile"
	"github.com/leapstack-labs/profq/internal/store"
)

// Name is the registered format name.
const Name = "tsdb"

func init() {
	store.Register(Name, func() store.Format { return New() })
}

// Format implements store.Format for the native profile layout.
type Format struct{}

// New creates a tsdb format writer.
func New() *Format {
	return &Format{}
}

// Name returns the registered format name.
func (f *Format) Name() string { return Name }

// Write writes the relations file and every table of src into dir. Tables
// without surviving rows are written as empty files.
func (f *Format) Write(ctx context.Context, dir string, src store.Source, opts store.Options) error {
	logger := opts.Log()
	rel := src.Relations()

	if err := store.WriteRelations(dir, rel); err != nil {
		return err
	}

	for _, table := range rel.Tables() {
		path := filepath.Join(dir, table)
		if opts.Gzip {
			path += profile.GzipSuffix
		}
		// Drop a stale copy in the other encoding so readers see one table file.
		stale := filepath.Join(dir, table)
		if !opts.Gzip {
			stale += profile.GzipSuffix
		}
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", stale, err)
		}

		n := 0
		err := writeFile(path, opts.Gzip, func(w io.Writer) error {
			for row, err := range src.Select(ctx, table) {
				if err != nil {
					return err
				}
				if _, err := io.WriteString(w, row.Encode()+"\n"); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write table %s: %w", table, err)
		}
		logger.Debug("wrote table", "table", table, "rows", n, "path", path)
	}

	return nil
}

// writeFile creates path and hands a buffered (and optionally gzipped)
// writer to fill.
func writeFile(path string, compress bool, fill func(io.Writer) error) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is built from the output dir and relations table names
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(bw)
		w = zw
	}

	if err := fill(w); err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}
	return bw.Flush()
}
