// Package dag provides directed acyclic graph operations for table dependencies.
// Edges carry the key column through which a child table references its parent.
// It supports cycle detection, topological sorting, and downstream traversal.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Edge is a dependency of Child on Parent through the key column Key.
type Edge struct {
	Parent string
	Child  string
	Key    string
}

// Graph represents a directed acyclic graph of tables.
type Graph struct {
	order   []string            // nodes in insertion order
	nodes   map[string]struct{} // node set
	edges   map[string][]Edge   // parent -> outgoing edges
	parents map[string][]Edge   // child -> incoming edges
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]struct{}),
		edges:   make(map[string][]Edge),
		parents: make(map[string][]Edge),
	}
}

// AddNode adds a node to the graph. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, exists := g.nodes[id]; exists {
		return
	}
	g.nodes[id] = struct{}{}
	g.order = append(g.order, id)
	g.edges[id] = []Edge{}
	g.parents[id] = []Edge{}
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge adds a directed edge from parent to child through key.
func (g *Graph) AddEdge(parentID, childID, key string) error {
	if !g.HasNode(parentID) {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if !g.HasNode(childID) {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	e := Edge{Parent: parentID, Child: childID, Key: key}
	if slices.Contains(g.edges[parentID], e) {
		return nil
	}
	g.edges[parentID] = append(g.edges[parentID], e)
	g.parents[childID] = append(g.parents[childID], e)
	return nil
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.order)
}

// Parents returns the incoming edges of a node.
func (g *Graph) Parents(id string) []Edge {
	return g.parents[id]
}

// Children returns the outgoing edges of a node.
func (g *Graph) Children(id string) []Edge {
	return g.edges[id]
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, out := range g.edges {
		count += len(out)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, e := range g.edges[id] {
			child := e.Child
			if !visited[child] {
				path[child] = id
				if dfs(child) {
					return true
				}
			} else if recStack[child] {
				cyclePath = []string{child}
				for curr := id; curr != child; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{child}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.order {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}

	return false, nil
}

// CycleError is returned when an ordering is requested for a cyclic graph.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Path)
}

// TopologicalSort returns nodes with every parent before its children. Ties
// are broken by insertion order.
func (g *Graph) TopologicalSort() ([]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: cyclePath}
	}

	visited := make(map[string]bool)
	result := make([]string, 0, len(g.order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, e := range g.parents[id] {
			visit(e.Parent)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}

	return result, nil
}

// Levels returns nodes grouped by depth. Level 0 holds nodes without
// parents; each other node sits one level below its deepest parent.
func (g *Graph) Levels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, &CycleError{Path: cyclePath}
	}

	assigned := make(map[string]int)

	var getLevel func(id string) int
	getLevel = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}
		level := 0
		for _, e := range g.parents[id] {
			if pl := getLevel(e.Parent) + 1; pl > level {
				level = pl
			}
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for _, id := range g.order {
		if level := getLevel(id); level > maxLevel {
			maxLevel = level
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, id := range g.order {
		levels[assigned[id]] = append(levels[assigned[id]], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}

	return levels, nil
}

// Descendants returns all nodes downstream of the given nodes, sorted. The
// given nodes themselves are not included unless reachable from another one.
func (g *Graph) Descendants(ids ...string) []string {
	seen := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		for _, e := range g.edges[id] {
			if !seen[e.Child] {
				seen[e.Child] = true
				mark(e.Child)
			}
		}
	}

	for _, id := range ids {
		mark(id)
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// Roots returns nodes with no parents, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}
