// Package pipeline drives one profq run: validate the merged configuration,
// open the input profile behind a filtered view, optionally write an output
// profile, and optionally print a selection.
//
// A run moves through these states in order; bracketed ones are skipped
// when not requested:
//
//	Start → ConfigLoaded → Validated → InputPrepared → [OutputPrepared] → [Selected] → Done
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/google/uuid"

	"github.com/leapstack-labs/profq/internal/action"
	"github.com/leapstack-labs/profq/internal/cli/config"
	"github.com/leapstack-labs/profq/internal/cli/output"
	"github.com/leapstack-labs/profq/internal/dataspec"
	"github.com/leapstack-labs/profq/internal/expr"
	"github.com/leapstack-labs/profq/internal/profile"
	"github.com/leapstack-labs/profq/internal/store"

	// Output formats
	_ "github.com/leapstack-labs/profq/internal/store/duckdb"
	_ "github.com/leapstack-labs/profq/internal/store/sqlite"
	_ "github.com/leapstack-labs/profq/internal/store/tsdb"
)

// State is a step of a run.
type State int

// Run states.
const (
	Start State = iota
	ConfigLoaded
	Validated
	InputPrepared
	OutputPrepared
	Selected
	Done
)

var stateNames = [...]string{"start", "config_loaded", "validated", "input_prepared", "output_prepared", "selected", "done"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// OutputError is a failure to create, access or write the output location.
type OutputError struct {
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %s: %v", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error {
	return e.Err
}

// Options configures a Pipeline.
type Options struct {
	// Stdout receives the selection. Defaults to os.Stdout.
	Stdout io.Writer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// RunID identifies the run; a random UUID is used when empty.
	RunID string
}

// Pipeline executes a single run over a loaded configuration.
type Pipeline struct {
	cfg    *config.Config
	stdout io.Writer
	logger *slog.Logger
	runID  string
	state  State

	actions []*action.Action
	view    *profile.View
}

// New creates a pipeline for cfg. A nil cfg leaves the pipeline in Start.
func New(cfg *config.Config, opts Options) *Pipeline {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	p := &Pipeline{
		cfg:    cfg,
		stdout: stdout,
		logger: logger.With("run_id", runID),
		runID:  runID,
	}
	if cfg != nil {
		p.state = ConfigLoaded
	}
	return p
}

// RunID returns the identifier of this run.
func (p *Pipeline) RunID() string { return p.runID }

// State returns the last state reached.
func (p *Pipeline) State() State { return p.state }

// View returns the input view once the input is prepared.
func (p *Pipeline) View() *profile.View { return p.view }

// Run executes every remaining step. It stops at the first failure, leaving
// State at the last step that completed.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.state < ConfigLoaded {
		return &config.ConfigError{Err: errors.New("no configuration loaded")}
	}

	steps := []struct {
		to   State
		skip bool
		fn   func(context.Context) error
	}{
		{Validated, false, p.validate},
		{InputPrepared, false, p.prepareInput},
		{OutputPrepared, p.cfg.Output == "", p.prepareOutput},
		{Selected, p.cfg.Select == "", p.selectRows},
	}

	for _, step := range steps {
		if step.skip || p.state >= step.to {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.fn(ctx); err != nil {
			return err
		}
		p.logger.Debug("pipeline step done", "state", step.to)
		p.state = step.to
	}

	p.state = Done
	p.logger.Info("run completed")
	return nil
}

func (p *Pipeline) validate(_ context.Context) error {
	if err := p.cfg.Verify(p.logger, checkOutputFormat, checkSelectFormat); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func checkOutputFormat(cfg *config.Config) error {
	if cfg.Output != "" && !store.IsRegistered(cfg.OutputFormat) {
		return &store.UnknownFormatError{Name: cfg.OutputFormat, Available: store.List()}
	}
	return nil
}

func checkSelectFormat(cfg *config.Config) error {
	if cfg.Select != "" && cfg.SelectFormat != "" && !slices.Contains(output.Formats(), cfg.SelectFormat) {
		return &output.UnknownFormatError{Name: cfg.SelectFormat}
	}
	return nil
}

// prepareInput compiles the declared actions, applicators first, and opens
// the input profile behind a view.
func (p *Pipeline) prepareInput(ctx context.Context) error {
	compiler := expr.NewCompiler()

	build := func(kind action.Kind, decls []config.Declaration) error {
		for _, d := range decls {
			a, err := action.New(compiler, kind, d.Spec, d.Expr)
			if err != nil {
				return fmt.Errorf("%s %s: %w", kind, d, err)
			}
			p.actions = append(p.actions, a)
		}
		return nil
	}
	if err := build(action.Applicator, p.cfg.Applicators); err != nil {
		return err
	}
	if err := build(action.Filter, p.cfg.Filters); err != nil {
		return err
	}

	prof, err := profile.Open(p.cfg.Input, p.cfg.Relations)
	if err != nil {
		return err
	}
	view, err := profile.NewView(prof, p.actions, p.cfg.CascadeFilters)
	if err != nil {
		return err
	}
	p.view = view

	p.logger.Info("input prepared",
		"input", p.cfg.Input,
		"tables", len(prof.Relations().Tables()),
		"actions", len(p.actions),
		"cascade", p.cfg.CascadeFilters)

	// Exclusions are settled before any row is emitted.
	if view.Cascading() {
		ex, err := view.Exclusions(ctx)
		if err != nil {
			return err
		}
		p.logger.Debug("cascade exclusions resolved", "count", ex.Len())
	}
	return nil
}

func (p *Pipeline) prepareOutput(ctx context.Context) error {
	dir := p.cfg.Output
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &OutputError{Path: dir, Err: err}
	}
	if err := checkAccess(dir); err != nil {
		return &OutputError{Path: dir, Err: err}
	}

	path, err := p.cfg.WriteCopy(dir)
	switch {
	case errors.Is(err, config.ErrProvenanceExists):
		p.logger.Warn("configuration copy not written", "path", path, "reason", "file exists")
	case err != nil:
		return &OutputError{Path: dir, Err: err}
	default:
		p.logger.Debug("configuration copy written", "path", path)
	}

	format, err := store.New(p.cfg.OutputFormat)
	if err != nil {
		return err
	}
	if err := format.Write(ctx, dir, p.view, store.Options{
		RunID:  p.runID,
		Input:  p.cfg.Input,
		Gzip:   p.cfg.Gzip,
		Logger: p.logger,
	}); err != nil {
		return &OutputError{Path: dir, Err: err}
	}

	p.logger.Info("output written", "output", dir, "format", format.Name())
	return nil
}

// checkAccess verifies that dir can be listed and written to.
func checkAccess(dir string) error {
	if _, err := os.ReadDir(dir); err != nil {
		return fmt.Errorf("not readable: %w", err)
	}
	f, err := os.CreateTemp(dir, ".profq-access-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (p *Pipeline) selectRows(ctx context.Context) error {
	spec, err := dataspec.Parse(p.cfg.Select)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	cols, rows, err := p.view.SelectSpec(ctx, spec)
	if err != nil {
		return fmt.Errorf("select %s: %w", spec, err)
	}
	return output.Render(p.stdout, p.cfg.SelectFormat, cols, rows)
}
