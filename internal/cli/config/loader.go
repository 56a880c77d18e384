package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// EnvPrefix marks environment variables that provide default option values.
const EnvPrefix = "PROFQ_"

// ErrConfigNotFound is returned when no configuration file is discoverable.
var ErrConfigNotFound = errors.New("no configuration file found")

// ConfigError is a fatal configuration failure.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoaderOptions controls where configuration is looked up.
type LoaderOptions struct {
	// Explicit is a configuration path given by the user; it must exist.
	Explicit string
	// WorkDir and HomeDir are searched, in that order, for Filename.
	WorkDir string
	HomeDir string
	// Filename defaults to DefaultFilename.
	Filename string
	// Flags are overlaid last. Only truthy values are taken.
	Flags *pflag.FlagSet
}

// flagKeys maps flag names to configuration keys where they differ.
var flagKeys = map[string]string{
	"apply":   "applicators",
	"filter":  "filters",
	"verbose": "verbosity",
	"format":  "select_format",
	"config":  "",
}

// Load resolves, reads and merges configuration.
// Precedence (highest to lowest): truthy flags > config file > env vars > defaults
func Load(opts LoaderOptions) (*Config, error) {
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}

	path, err := findConfigFile(opts)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"verbosity":       0,
		"input":           "",
		"output":          "",
		"relations":       "",
		"select":          "",
		"applicators":     []interface{}{},
		"filters":         []interface{}{},
		"cascade_filters": false,
		"output_format":   DefaultOutputFormat,
		"select_format":   DefaultSelectFormat,
		"gzip":            false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Environment variables (PROFQ_ prefix)
	// Transform: PROFQ_OUTPUT_FORMAT -> output_format
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 3. Configuration file
	raw, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	isYAML := hasYAMLExt(path)
	var parser koanf.Parser = kjson.Parser()
	if isYAML {
		parser = kyaml.Parser()
	} else {
		raw = StripComments(raw)
	}
	parsed, err := parser.Unmarshal(raw)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if err := k.Load(confmap.Provider(parsed, ""), nil); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	fileKeys, extra, err := orderedFields(raw, isYAML)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	// 4. Flags (truthy values only)
	if opts.Flags != nil {
		flags := opts.Flags
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if key == "" {
				return "", nil
			}
			val := flagValue(flags, f)
			if !truthy(val) {
				return "", nil
			}
			return key, val
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	cfg := Config{Path: path, Filename: opts.Filename, Extra: extra, fileKeys: fileKeys}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       declarationHook,
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("unable to decode config: %w", err)}
	}

	return &cfg, nil
}

// findConfigFile returns the single configuration file to load.
// Priority: explicit path > WorkDir/Filename > HomeDir/Filename
func findConfigFile(opts LoaderOptions) (string, error) {
	if opts.Explicit != "" {
		if _, err := os.Stat(opts.Explicit); err != nil {
			return "", &ConfigError{Path: opts.Explicit, Err: err}
		}
		return opts.Explicit, nil
	}

	for _, dir := range []string{opts.WorkDir, opts.HomeDir} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, opts.Filename)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", &ConfigError{Path: candidate, Err: err}
		}
	}

	return "", &ConfigError{Err: fmt.Errorf("%w (looked for %s in the working and home directories)", ErrConfigNotFound, opts.Filename)}
}

func hasYAMLExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// flagValue reads a flag with its native type. Count and string-array flags
// are not typed by posflag.FlagVal.
func flagValue(flags *pflag.FlagSet, f *pflag.Flag) interface{} {
	switch f.Value.Type() {
	case "count":
		n, _ := flags.GetCount(f.Name)
		return n
	case "stringArray":
		v, _ := flags.GetStringArray(f.Name)
		return v
	}
	return posflag.FlagVal(flags, f)
}

// truthy reports whether a flag value overrides the file value.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String:
		return rv.Len() > 0
	default:
		return !rv.IsZero()
	}
}

var declarationType = reflect.TypeOf(Declaration{})

// declarationHook decodes SPEC=EXPR strings and [spec, expr] pairs.
func declarationHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != declarationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return ParseDeclaration(v)
	case []interface{}:
		if len(v) != 2 {
			return nil, fmt.Errorf("declaration %v: expected [specifier, expression]", v)
		}
		spec, ok1 := v[0].(string)
		expr, ok2 := v[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("declaration %v: specifier and expression must be strings", v)
		}
		return Declaration{Spec: spec, Expr: expr}, nil
	case []string:
		if len(v) != 2 {
			return nil, fmt.Errorf("declaration %v: expected [specifier, expression]", v)
		}
		return Declaration{Spec: v[0], Expr: v[1]}, nil
	}
	return data, nil
}

// orderedFields returns the top-level keys of a configuration document in
// file order, plus the unrecognized ones with their values as JSON. A
// repeated key keeps its first position and its last value.
func orderedFields(raw []byte, isYAML bool) ([]string, []ExtraField, error) {
	fields := orderedmap.New[string, json.RawMessage]()
	if isYAML {
		doc := orderedmap.New[string, any]()
		if err := yaml.Unmarshal(raw, doc); err != nil {
			return nil, nil, err
		}
		for pair := doc.Oldest(); pair != nil; pair = pair.Next() {
			b, err := json.Marshal(pair.Value)
			if err != nil {
				return nil, nil, fmt.Errorf("key %s: %w", pair.Key, err)
			}
			fields.Set(pair.Key, b)
		}
	} else if err := json.Unmarshal(raw, fields); err != nil {
		return nil, nil, fmt.Errorf("expected a JSON object at the top level: %w", err)
	}

	keys := make([]string, 0, fields.Len())
	var extra []ExtraField
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
		if !isRecognized(pair.Key) {
			extra = append(extra, ExtraField{Key: pair.Key, Value: pair.Value})
		}
	}
	return keys, extra, nil
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
