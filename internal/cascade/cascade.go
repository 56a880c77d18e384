// Package cascade propagates row exclusions across tables linked by key
// columns. A table owns the key column it introduces; every other table that
// declares the same key column depends on the owner, so excluding an owner
// row excludes the dependent rows sharing its key value, transitively.
package cascade

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/profq/internal/dag"
)

// Schema is the part of a relations schema the resolver needs.
type Schema interface {
	// Tables returns table names in declaration order.
	Tables() []string
	// Keys returns the key columns of table in declaration order.
	Keys(table string) []string
	// Partial reports whether col of table is a partial key, one that
	// refers to another table's key without identifying the row.
	Partial(table, col string) bool
}

// Getter reads column values of a row.
type Getter interface {
	Get(col string) (string, bool)
}

// Resolver holds the cascade graph of a schema.
type Resolver struct {
	graph  *dag.Graph
	owner  map[string]string // key column -> owning table
	ownKey map[string]string // table -> key column it owns
	order  []string
}

// NewResolver derives the cascade graph from schema. Each table whose first
// key column is not partial claims that column; among the claimants of a
// column the table with the most key columns owns it, and ties go to the
// table declared first. Every other table declaring an owned column gains an
// edge from its owner.
func NewResolver(schema Schema) (*Resolver, error) {
	r := &Resolver{
		graph:  dag.NewGraph(),
		owner:  make(map[string]string),
		ownKey: make(map[string]string),
	}

	tables := schema.Tables()
	width := make(map[string]int, len(tables))
	for _, t := range tables {
		r.graph.AddNode(t)
		keys := schema.Keys(t)
		width[t] = len(keys)
		if len(keys) == 0 || schema.Partial(t, keys[0]) {
			continue
		}
		if cur, taken := r.owner[keys[0]]; taken {
			if width[cur] >= len(keys) {
				continue
			}
			delete(r.ownKey, cur)
		}
		r.owner[keys[0]] = t
		r.ownKey[t] = keys[0]
	}

	for _, t := range tables {
		for _, key := range schema.Keys(t) {
			parent, ok := r.owner[key]
			if !ok || parent == t {
				continue
			}
			if err := r.graph.AddEdge(parent, t, key); err != nil {
				return nil, fmt.Errorf("cascade edge %s -> %s: %w", parent, t, err)
			}
		}
	}

	order, err := r.graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("cascade graph: %w", err)
	}
	r.order = order

	return r, nil
}

// Graph returns the underlying table graph.
func (r *Resolver) Graph() *dag.Graph {
	return r.graph
}

// Order returns all tables with every parent ahead of its dependents.
func (r *Resolver) Order() []string {
	return r.order
}

// OwnKey returns the key column owned by table, if any.
func (r *Resolver) OwnKey(table string) (string, bool) {
	k, ok := r.ownKey[table]
	return k, ok
}

// Dependents returns every table reachable from the given tables.
func (r *Resolver) Dependents(tables ...string) []string {
	return r.graph.Descendants(tables...)
}

// Excluded reports whether row of table is excluded through any of the
// table's parents.
func (r *Resolver) Excluded(ex *Exclusions, table string, row Getter) bool {
	if ex.Len() == 0 {
		return false
	}
	for _, e := range r.graph.Parents(table) {
		v, ok := row.Get(e.Key)
		if ok && ex.Excludes(e.Parent, e.Key, v) {
			return true
		}
	}
	return false
}

// Record adds row's owned key value to the exclusion set. Rows of tables
// that own no key cannot propagate and are ignored.
func (r *Resolver) Record(ex *Exclusions, table string, row Getter) {
	key, ok := r.ownKey[table]
	if !ok {
		return
	}
	if v, ok := row.Get(key); ok {
		ex.Exclude(table, key, v)
	}
}

// ScanFunc visits the rows of table, reporting for each whether the table's
// own filters reject it.
type ScanFunc func(ctx context.Context, table string, visit func(row Getter, rejected bool) error) error

// Resolve computes the full exclusion set caused by filters on the given
// tables. Tables are scanned parents first so that a row excluded through
// its parent propagates further down in the same pass. Only tables that can
// propagate (they own a key and have dependents) are scanned.
func (r *Resolver) Resolve(ctx context.Context, filtered []string, scan ScanFunc) (*Exclusions, error) {
	ex := NewExclusions()

	relevant := make(map[string]bool)
	for _, t := range filtered {
		if r.graph.HasNode(t) {
			relevant[t] = true
		}
	}
	for _, t := range r.Dependents(filtered...) {
		relevant[t] = true
	}

	for _, table := range r.order {
		if !relevant[table] {
			continue
		}
		if _, owns := r.ownKey[table]; !owns || len(r.graph.Children(table)) == 0 {
			continue
		}
		err := scan(ctx, table, func(row Getter, rejected bool) error {
			if rejected || r.Excluded(ex, table, row) {
				r.Record(ex, table, row)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return ex, nil
}
