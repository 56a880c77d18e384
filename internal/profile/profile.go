// Package profile reads linguistic test-suite profiles: a directory holding a
// relations schema plus one '@'-delimited file per table (optionally gzipped),
// and exposes filtered, transformed views over them.
package profile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/leapstack-labs/profq/internal/profile/field"
)

// GzipSuffix marks a compressed table file.
const GzipSuffix = ".gz"

// Profile is an opened profile directory.
type Profile struct {
	dir       string
	relations *Relations
}

// Open opens the profile in dir. relationsPath overrides the profile's own
// relations file when non-empty.
func Open(dir, relationsPath string) (*Profile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profile %s is not a directory", dir)
	}

	if relationsPath == "" {
		relationsPath = filepath.Join(dir, RelationsFilename)
	}
	rel, err := ReadRelations(relationsPath)
	if err != nil {
		return nil, err
	}

	return &Profile{dir: dir, relations: rel}, nil
}

// Dir returns the profile directory.
func (p *Profile) Dir() string {
	return p.dir
}

// Relations returns the profile schema.
func (p *Profile) Relations() *Relations {
	return p.relations
}

// schema returns the schema of table or an UnknownTableError.
func (p *Profile) schema(table string) (*TableSchema, error) {
	t, ok := p.relations.Table(table)
	if !ok {
		return nil, &UnknownTableError{Table: table, Available: p.relations.Tables()}
	}
	return t, nil
}

// Rows iterates over the stored rows of table, unmodified. A table without a
// file is empty.
func (p *Profile) Rows(ctx context.Context, table string) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		schema, err := p.schema(table)
		if err != nil {
			yield(nil, err)
			return
		}

		rc, err := openTable(p.dir, table)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(nil, err)
			return
		}
		defer func() { _ = rc.Close() }()

		scanner := bufio.NewScanner(rc)
		scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			row, err := NewRow(schema, field.Split(scanner.Text()))
			if err != nil {
				yield(nil, fmt.Errorf("%s line %d: %w", table, lineNo, err))
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to read table %s: %w", table, err))
		}
	}
}

// openTable opens dir/table, falling back to dir/table.gz.
func openTable(dir, table string) (io.ReadCloser, error) {
	path := filepath.Join(dir, table)
	f, err := os.Open(path) //nolint:gosec // table names come from the relations file
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to open table %s: %w", table, err)
	}

	gz, err := os.Open(path + GzipSuffix) //nolint:gosec // table names come from the relations file
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(gz)
	if err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("failed to open table %s: %w", table, err)
	}
	return &gzipFile{Reader: zr, file: gz}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.file.Close())
}
