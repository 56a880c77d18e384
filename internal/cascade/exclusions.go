package cascade

type exclusion struct {
	table string
	key   string
	value string
}

// Exclusions is a set of (table, key column, key value) triples.
type Exclusions struct {
	set map[exclusion]struct{}
}

// NewExclusions creates an empty set.
func NewExclusions() *Exclusions {
	return &Exclusions{set: make(map[exclusion]struct{})}
}

// Exclude adds a triple.
func (e *Exclusions) Exclude(table, key, value string) {
	e.set[exclusion{table, key, value}] = struct{}{}
}

// Excludes reports whether the triple is in the set.
func (e *Exclusions) Excludes(table, key, value string) bool {
	if e == nil {
		return false
	}
	_, ok := e.set[exclusion{table, key, value}]
	return ok
}

// Len returns the number of triples.
func (e *Exclusions) Len() int {
	if e == nil {
		return 0
	}
	return len(e.set)
}
