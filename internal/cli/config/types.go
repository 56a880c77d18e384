// Package config provides configuration management for the profq CLI.
//
// Configuration is layered with koanf: built-in defaults, PROFQ_* environment
// variables, at most one configuration file, and finally command-line flags
// whose values are truthy.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultFilename is the reserved configuration filename looked up in the
// working and home directories and written into output profiles.
const DefaultFilename = ".profqrc"

// Default values for options that have one.
const (
	DefaultOutputFormat = "tsdb"
	DefaultSelectFormat = "plain"
)

// Declaration is a filter or applicator declared in configuration: a data
// specifier and the expression bound to it. In files it is written as a
// two-element array, on the command line as SPEC=EXPR.
type Declaration struct {
	Spec string `koanf:"spec"`
	Expr string `koanf:"expr"`
}

// ParseDeclaration splits SPEC=EXPR at the first '='.
func ParseDeclaration(s string) (Declaration, error) {
	spec, expr, ok := strings.Cut(s, "=")
	if !ok {
		return Declaration{}, fmt.Errorf("invalid declaration %q: expected SPEC=EXPR", s)
	}
	return Declaration{Spec: strings.TrimSpace(spec), Expr: expr}, nil
}

func (d Declaration) String() string {
	return d.Spec + "=" + d.Expr
}

// MarshalJSON writes the declaration as [spec, expr].
func (d Declaration) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{d.Spec, d.Expr})
}

// Config holds all CLI configuration options.
type Config struct {
	Verbosity      int           `koanf:"verbosity"`
	Input          string        `koanf:"input"`
	Output         string        `koanf:"output"`
	Relations      string        `koanf:"relations"`
	Select         string        `koanf:"select"`
	Applicators    []Declaration `koanf:"applicators"`
	Filters        []Declaration `koanf:"filters"`
	CascadeFilters bool          `koanf:"cascade_filters"`
	OutputFormat   string        `koanf:"output_format"`
	SelectFormat   string        `koanf:"select_format"`
	Gzip           bool          `koanf:"gzip"`

	// Path is the configuration file that was loaded.
	Path string `koanf:"-"`
	// Filename is the reserved name used for discovery and provenance.
	Filename string `koanf:"-"`
	// Extra holds unrecognized file keys in file order, verbatim.
	Extra []ExtraField `koanf:"-"`

	fileKeys []string
}

// ExtraField is a configuration key profq does not interpret.
type ExtraField struct {
	Key   string
	Value json.RawMessage
}

// recognizedKeys lists the interpreted options in canonical order.
var recognizedKeys = []string{
	"verbosity",
	"input",
	"output",
	"relations",
	"select",
	"applicators",
	"filters",
	"cascade_filters",
	"output_format",
	"select_format",
	"gzip",
}

func isRecognized(key string) bool {
	for _, k := range recognizedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// value returns the merged value of a recognized key.
func (c *Config) value(key string) any {
	switch key {
	case "verbosity":
		return c.Verbosity
	case "input":
		return c.Input
	case "output":
		return c.Output
	case "relations":
		return c.Relations
	case "select":
		return c.Select
	case "applicators":
		return nonNil(c.Applicators)
	case "filters":
		return nonNil(c.Filters)
	case "cascade_filters":
		return c.CascadeFilters
	case "output_format":
		return c.OutputFormat
	case "select_format":
		return c.SelectFormat
	case "gzip":
		return c.Gzip
	}
	return nil
}

func nonNil(d []Declaration) []Declaration {
	if d == nil {
		return []Declaration{}
	}
	return d
}
