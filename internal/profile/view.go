package profile

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/leapstack-labs/profq/internal/action"
	"github.com/leapstack-labs/profq/internal/cascade"
	"github.com/leapstack-labs/profq/internal/dataspec"
)

// View is a profile seen through a list of actions. Applicators rewrite rows
// and filters drop them; with cascading enabled a dropped row also drops the
// rows of dependent tables that share its key value.
type View struct {
	profile *Profile
	actions map[string][]*action.Action
	cascade bool

	resolver   *cascade.Resolver
	resolve    sync.Once
	exclusions *cascade.Exclusions
	resolveErr error
}

// NewView checks every action against the profile schema and returns the view.
func NewView(p *Profile, actions []*action.Action, cascading bool) (*View, error) {
	v := &View{
		profile: p,
		actions: make(map[string][]*action.Action),
		cascade: cascading,
	}

	for _, a := range actions {
		schema, err := p.schema(a.Table())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		for _, col := range a.Columns() {
			if schema.Index(col) < 0 {
				return nil, fmt.Errorf("%s: %w", a, &UnknownColumnError{Table: a.Table(), Column: col})
			}
		}
		v.actions[a.Table()] = append(v.actions[a.Table()], a)
	}

	if cascading {
		r, err := cascade.NewResolver(p.relations)
		if err != nil {
			return nil, err
		}
		v.resolver = r
	}

	return v, nil
}

// Profile returns the underlying profile.
func (v *View) Profile() *Profile {
	return v.profile
}

// Relations returns the schema of the underlying profile.
func (v *View) Relations() *Relations {
	return v.profile.relations
}

// Cascading reports whether filters propagate to dependent tables.
func (v *View) Cascading() bool {
	return v.cascade
}

// Exclusions returns the cascade exclusion set, computing it on first use.
// It is nil when cascading is off.
func (v *View) Exclusions(ctx context.Context) (*cascade.Exclusions, error) {
	if !v.cascade {
		return nil, nil
	}
	v.resolve.Do(func() {
		v.exclusions, v.resolveErr = v.resolver.Resolve(ctx, v.filteredTables(), v.scan)
	})
	return v.exclusions, v.resolveErr
}

func (v *View) filteredTables() []string {
	var tables []string
	for _, t := range v.profile.relations.Tables() {
		for _, a := range v.actions[t] {
			if a.Kind() == action.Filter {
				tables = append(tables, t)
				break
			}
		}
	}
	return tables
}

func (v *View) scan(ctx context.Context, table string, visit func(cascade.Getter, bool) error) error {
	for row, err := range v.profile.Rows(ctx, table) {
		if err != nil {
			return err
		}
		keep, err := v.process(row)
		if err != nil {
			return err
		}
		if err := visit(row, !keep); err != nil {
			return err
		}
	}
	return nil
}

// process runs the table's applicators and then its filters on row.
func (v *View) process(row *Row) (bool, error) {
	acts := v.actions[row.Table()]
	for _, a := range acts {
		if a.Kind() == action.Applicator {
			if err := a.Apply(row); err != nil {
				return false, err
			}
		}
	}
	for _, a := range acts {
		if a.Kind() == action.Filter {
			keep, err := a.Keep(row)
			if err != nil || !keep {
				return false, err
			}
		}
	}
	return true, nil
}

// Select iterates over the rows of table that survive the view's actions
// and, when cascading, the exclusion set.
func (v *View) Select(ctx context.Context, table string) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		ex, err := v.Exclusions(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		for row, err := range v.profile.Rows(ctx, table) {
			if err != nil {
				yield(nil, err)
				return
			}
			keep, err := v.process(row)
			if err != nil {
				yield(nil, err)
				return
			}
			if !keep || (ex != nil && v.resolver.Excluded(ex, table, row)) {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// SelectSpec iterates over the values addressed by spec: the requested
// columns in specifier order, or the whole row when none are given.
func (v *View) SelectSpec(ctx context.Context, spec dataspec.Specifier) ([]string, iter.Seq2[[]string, error], error) {
	schema, err := v.profile.schema(spec.Table)
	if err != nil {
		return nil, nil, err
	}
	cols := spec.Columns
	if spec.WholeRow() {
		cols = schema.FieldNames()
	}
	for _, col := range cols {
		if schema.Index(col) < 0 {
			return nil, nil, &UnknownColumnError{Table: spec.Table, Column: col}
		}
	}

	seq := func(yield func([]string, error) bool) {
		for row, err := range v.Select(ctx, spec.Table) {
			if err != nil {
				yield(nil, err)
				return
			}
			vals, err := row.Select(cols)
			if !yield(vals, err) || err != nil {
				return
			}
		}
	}
	return cols, seq, nil
}
