package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// RelationsFilename is the schema file expected inside a profile.
const RelationsFilename = "relations"

// Check is a validation rule supplied by the caller, for facts the
// configuration cannot see on its own such as which formats are registered.
type Check func(*Config) error

// Validate checks the merged configuration before any profile is read,
// running the extra checks after the built-in ones. All problems are
// reported together.
func (c *Config) Validate(extra ...Check) error {
	var result *multierror.Error

	if c.Input == "" {
		result = multierror.Append(result, errors.New("input profile is required\nHint: pass --input or set \"input\" in the configuration file"))
	}

	if c.Relations != "" {
		if _, err := os.Stat(c.Relations); err != nil {
			result = multierror.Append(result, fmt.Errorf("relations file %s: %w", c.Relations, err))
		}
	}

	if c.Output != "" {
		if c.Relations == "" && c.Input != "" {
			candidate := filepath.Join(c.Input, RelationsFilename)
			if _, err := os.Stat(candidate); err != nil {
				result = multierror.Append(result, fmt.Errorf("output requested but no relations file is available (%s: %w)", candidate, err))
			}
		}
		if c.Input != "" && sameDir(c.Input, c.Output) {
			result = multierror.Append(result, fmt.Errorf("output %s must differ from input", c.Output))
		}
	}

	for _, d := range c.Applicators {
		if d.Spec == "" || d.Expr == "" {
			result = multierror.Append(result, fmt.Errorf("applicator %q: specifier and expression are required", d))
		}
	}
	for _, d := range c.Filters {
		if d.Spec == "" || d.Expr == "" {
			result = multierror.Append(result, fmt.Errorf("filter %q: specifier and expression are required", d))
		}
	}

	for _, check := range extra {
		if err := check(c); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// Verify runs Validate and logs every problem found before returning them.
func (c *Config) Verify(logger *slog.Logger, extra ...Check) error {
	err := c.Validate(extra...)
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			logger.Error("invalid configuration", "error", e)
		}
	} else {
		logger.Error("invalid configuration", "error", err)
	}
	return err
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
