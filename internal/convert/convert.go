// Package convert provides the representation converters that expressions can
// call through the predeclared convert() function.
//
// Converters are registered under a (source, target) codec pair, usually from
// an init() function, and looked up by name at evaluation time.
package convert

import (
	"fmt"
	"sort"
	"sync"
)

// Converter turns a value in one representation into another.
type Converter interface {
	Convert(s string) (string, error)
}

// Func adapts a plain function to the Converter interface.
type Func func(s string) (string, error)

// Convert calls f(s).
func (f Func) Convert(s string) (string, error) {
	return f(s)
}

type codecPair struct {
	source, target string
}

func (p codecPair) String() string {
	return p.source + "->" + p.target
}

var (
	registryMu sync.RWMutex
	registry   = make(map[codecPair]Converter)
)

// Register adds a converter for the source/target codec pair, replacing any
// previous registration.
func Register(source, target string, c Converter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[codecPair{source, target}] = c
}

// Get retrieves the converter registered for the codec pair.
func Get(source, target string) (Converter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[codecPair{source, target}]
	return c, ok
}

// Convert converts s from source to target using the registered converter.
func Convert(s, source, target string) (string, error) {
	c, ok := Get(source, target)
	if !ok {
		return "", &UnknownConverterError{
			Source:    source,
			Target:    target,
			Available: List(),
		}
	}
	out, err := c.Convert(s)
	if err != nil {
		return "", fmt.Errorf("convert %s->%s: %w", source, target, err)
	}
	return out, nil
}

// List returns the registered codec pairs as "source->target" (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for pair := range registry {
		names = append(names, pair.String())
	}
	sort.Strings(names)
	return names
}

// UnknownConverterError is returned when no converter handles a codec pair.
type UnknownConverterError struct {
	Source    string
	Target    string
	Available []string
}

func (e *UnknownConverterError) Error() string {
	return fmt.Sprintf("unknown converter %s->%s\nAvailable converters: %v", e.Source, e.Target, e.Available)
}
