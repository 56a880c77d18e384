package profile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// RelationsFilename is the name of the schema file inside a profile directory.
const RelationsFilename = "relations"

// Field is one column declaration of a table schema.
type Field struct {
	Name    string
	Type    string
	Key     bool
	Partial bool
}

// TableSchema declares the ordered columns of one table.
type TableSchema struct {
	Name   string
	Fields []Field
	names  []string
	index  map[string]int
}

// Index returns the position of column col, or -1.
func (t *TableSchema) Index(col string) int {
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// FieldNames returns the column names in declaration order. The slice is
// shared and must not be modified.
func (t *TableSchema) FieldNames() []string {
	return t.names
}

// Keys returns the names of the key columns in declaration order.
func (t *TableSchema) Keys() []string {
	var keys []string
	for _, f := range t.Fields {
		if f.Key {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

func (t *TableSchema) addField(f Field) error {
	if _, dup := t.index[f.Name]; dup {
		return fmt.Errorf("table %s: duplicate field %q", t.Name, f.Name)
	}
	t.index[f.Name] = len(t.Fields)
	t.Fields = append(t.Fields, f)
	t.names = append(t.names, f.Name)
	return nil
}

// Relations is the schema of a profile: its tables in declaration order.
type Relations struct {
	tables []*TableSchema
	byName map[string]*TableSchema
}

// Tables returns the table names in declaration order.
func (r *Relations) Tables() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// Table returns the schema of the named table.
func (r *Relations) Table(name string) (*TableSchema, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Keys returns the key columns of the named table (nil if unknown).
func (r *Relations) Keys(table string) []string {
	if t, ok := r.byName[table]; ok {
		return t.Keys()
	}
	return nil
}

// Partial reports whether col of the named table is marked :partial.
func (r *Relations) Partial(table, col string) bool {
	t, ok := r.byName[table]
	if !ok {
		return false
	}
	if i := t.Index(col); i >= 0 {
		return t.Fields[i].Partial
	}
	return false
}

// ReadRelations reads and parses a relations file.
func ReadRelations(path string) (*Relations, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user's configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open relations file: %w", err)
	}
	defer func() { _ = f.Close() }()

	rel, err := ParseRelations(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rel, nil
}

// ParseRelations parses the relations format:
//
//	item:
//	  i-id :integer :key
//	  i-input :string
//
// Table headers start in the first column and end with a colon; field lines
// are indented. '#' starts a comment.
func ParseRelations(r io.Reader) (*Relations, error) {
	rel := &Relations{byName: make(map[string]*TableSchema)}
	var current *TableSchema

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		indented := line[0] == ' ' || line[0] == '\t'
		if !indented {
			name, ok := strings.CutSuffix(strings.TrimSpace(line), ":")
			if !ok || name == "" {
				return nil, fmt.Errorf("line %d: expected table header, got %q", lineNo, line)
			}
			if _, dup := rel.byName[name]; dup {
				return nil, fmt.Errorf("line %d: duplicate table %q", lineNo, name)
			}
			current = &TableSchema{Name: name, index: make(map[string]int)}
			rel.tables = append(rel.tables, current)
			rel.byName[name] = current
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: field declared before any table", lineNo)
		}
		f, err := parseField(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := current.addField(f); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rel, nil
}

func parseField(line string) (Field, error) {
	parts := strings.Fields(line)
	f := Field{Name: parts[0]}
	for _, p := range parts[1:] {
		attr, ok := strings.CutPrefix(p, ":")
		if !ok {
			return Field{}, fmt.Errorf("field %s: malformed attribute %q", f.Name, p)
		}
		switch attr {
		case "key":
			f.Key = true
		case "partial":
			f.Partial = true
		default:
			if f.Type != "" {
				return Field{}, fmt.Errorf("field %s: multiple types (%s, %s)", f.Name, f.Type, attr)
			}
			f.Type = attr
		}
	}
	return f, nil
}

// WriteTo writes the relations in the format read by ParseRelations.
func (r *Relations) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for i, t := range r.tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.Name + ":\n")
		for _, f := range t.Fields {
			sb.WriteString("  " + f.Name)
			if f.Type != "" {
				sb.WriteString(" :" + f.Type)
			}
			if f.Key {
				sb.WriteString(" :key")
			}
			if f.Partial {
				sb.WriteString(" :partial")
			}
			sb.WriteString("\n")
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
