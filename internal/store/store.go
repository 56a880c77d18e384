// Package store writes a profile view to an output location. Output formats
// register themselves by name from their init() functions; import a format
// package with a blank identifier to make it available:
//
//	import _ "github.com/leapstack-labs/profq/internal/store/tsdb"
package store

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/leapstack-labs/profq/internal/profile"
)

// DefaultFormat is used when no output format is configured.
const DefaultFormat = "tsdb"

// Source is the data a Format materializes: a schema and the surviving rows
// of each of its tables.
type Source interface {
	Relations() *profile.Relations
	Select(ctx context.Context, table string) iter.Seq2[*profile.Row, error]
}

// Options controls a single write.
type Options struct {
	// RunID identifies the run in logs and run metadata.
	RunID string
	// Input is the input profile location, recorded in run metadata.
	Input string
	// Gzip compresses table files where the format supports it.
	Gzip bool
	// Logger receives progress messages. Nil discards them.
	Logger *slog.Logger
}

// Log returns the configured logger or a discarding one.
func (o Options) Log() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Format materializes a Source into a directory.
type Format interface {
	// Name returns the registered name of the format.
	Name() string
	// Write materializes src into dir, which already exists.
	Write(ctx context.Context, dir string, src Source, opts Options) error
}

// WriteRelations copies the schema of rel into dir as a relations file.
func WriteRelations(dir string, rel *profile.Relations) (err error) {
	path := filepath.Join(dir, profile.RelationsFilename)
	f, err := os.Create(path) //nolint:gosec // fixed name inside the output dir
	if err != nil {
		return fmt.Errorf("failed to write relations: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to write relations: %w", cerr)
		}
	}()
	if _, err := rel.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write relations: %w", err)
	}
	return nil
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Format)
)

// Register adds a format factory to the registry.
// Called by format implementations in their init() functions.
func Register(name string, factory func() Format) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a format factory by name.
func Get(name string) (func() Format, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates the named format. An empty name selects DefaultFormat.
func New(name string) (Format, error) {
	if name == "" {
		name = DefaultFormat
	}
	factory, ok := Get(name)
	if !ok {
		return nil, &UnknownFormatError{Name: name, Available: List()}
	}
	return factory(), nil
}

// List returns all registered format names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a format is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownFormatError is returned when an unknown output format is requested.
type UnknownFormatError struct {
	Name      string
	Available []string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown output format %q\nAvailable formats: %v\nHint: Check output_format in your configuration", e.Name, e.Available)
}
