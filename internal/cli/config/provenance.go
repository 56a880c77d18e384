package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MarshalJSON writes the merged configuration. Keys present in the loaded
// file keep their file order, unrecognized keys are written verbatim, and
// recognized keys the file did not mention follow in canonical order.
func (c *Config) MarshalJSON() ([]byte, error) {
	extra := make(map[string]json.RawMessage, len(c.Extra))
	for _, f := range c.Extra {
		extra[f.Key] = f.Value
	}

	doc := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(c.fileKeys) + len(recognizedKeys) + len(c.Extra)))
	emit := func(key string) {
		if _, done := doc.Get(key); done {
			return
		}
		if raw, ok := extra[key]; ok {
			doc.Set(key, raw)
			return
		}
		doc.Set(key, c.value(key))
	}

	for _, key := range c.fileKeys {
		emit(key)
	}
	for _, key := range recognizedKeys {
		emit(key)
	}
	for _, f := range c.Extra {
		emit(f.Key)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return data, nil
}

// ErrProvenanceExists is returned by WriteCopy when the destination exists.
var ErrProvenanceExists = errors.New("configuration copy already exists")

// WriteCopy writes the merged configuration as indented JSON into dir under
// the reserved filename. An existing file is never overwritten; the returned
// error then wraps ErrProvenanceExists.
func (c *Config) WriteCopy(dir string) (string, error) {
	name := c.Filename
	if name == "" {
		name = DefaultFilename
	}
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return path, fmt.Errorf("failed to encode configuration: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path is the output dir plus the reserved name
	if errors.Is(err, fs.ErrExist) {
		return path, fmt.Errorf("%s: %w", path, ErrProvenanceExists)
	}
	if err != nil {
		return path, fmt.Errorf("failed to write configuration copy: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return path, fmt.Errorf("failed to write configuration copy: %w", err)
	}
	return path, f.Close()
}
