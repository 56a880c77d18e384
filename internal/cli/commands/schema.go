package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/profq/internal/cascade"
	"github.com/leapstack-labs/profq/internal/dag"
	"github.com/leapstack-labs/profq/internal/profile"
)

// SchemaOutput is the JSON form of the schema command.
type SchemaOutput struct {
	Tables      []SchemaTable `json:"tables"`
	Levels      [][]string    `json:"levels"`
	TotalTables int           `json:"total_tables"`
	TotalEdges  int           `json:"total_edges"`
}

// SchemaTable describes one table of a profile.
type SchemaTable struct {
	Name      string       `json:"name"`
	Fields    []string     `json:"fields"`
	Keys      []string     `json:"keys"`
	OwnKey    string       `json:"own_key,omitempty"`
	DependsOn []SchemaEdge `json:"depends_on,omitempty"`
	UsedBy    []SchemaEdge `json:"used_by,omitempty"`
}

// SchemaEdge is a cascade edge seen from one of its tables.
type SchemaEdge struct {
	Table string `json:"table"`
	Key   string `json:"key"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "schema PROFILE",
		Short: "Show the tables, keys and cascade graph of a profile",
		Long: `Display the relations schema of a profile: its tables, their key
columns, and the cascade graph that --cascade-filters follows.

A table owns its first key column unless a table declared earlier already
owns it. Each other key column links the table to the owner of that key.`,
		Example: `  # Show the schema of a profile
  profq schema profiles/mrs

  # Use a different relations file
  profq schema profiles/mrs -r relations.new

  # Output as JSON
  profq schema profiles/mrs --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			relations, _ := cmd.Flags().GetString("relations")
			return runSchema(cmd.OutOrStdout(), args[0], relations, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func runSchema(w io.Writer, dir, relations string, asJSON bool) error {
	p, err := profile.Open(dir, relations)
	if err != nil {
		return err
	}
	rel := p.Relations()

	resolver, err := cascade.NewResolver(rel)
	if err != nil {
		return err
	}
	graph := resolver.Graph()

	levels, err := graph.Levels()
	if err != nil {
		return fmt.Errorf("failed to get cascade levels: %w", err)
	}

	out := SchemaOutput{
		Levels:      levels,
		TotalTables: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}
	for _, name := range rel.Tables() {
		ts, _ := rel.Table(name)
		own, _ := resolver.OwnKey(name)
		out.Tables = append(out.Tables, SchemaTable{
			Name:      name,
			Fields:    ts.FieldNames(),
			Keys:      ts.Keys(),
			OwnKey:    own,
			DependsOn: edgesTo(graph.Parents(name), true),
			UsedBy:    edgesTo(graph.Children(name), false),
		})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return schemaText(w, out)
}

func edgesTo(edges []dag.Edge, parents bool) []SchemaEdge {
	out := make([]SchemaEdge, 0, len(edges))
	for _, e := range edges {
		table := e.Child
		if parents {
			table = e.Parent
		}
		out = append(out, SchemaEdge{Table: table, Key: e.Key})
	}
	return out
}

func formatEdges(edges []SchemaEdge) string {
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = fmt.Sprintf("%s (%s)", e.Table, e.Key)
	}
	return strings.Join(parts, ", ")
}

// schemaText outputs the schema as plain text.
func schemaText(w io.Writer, out SchemaOutput) error {
	byName := make(map[string]SchemaTable, len(out.Tables))

	_, _ = fmt.Fprintf(w, "Tables (%d):\n", len(out.Tables))
	for _, t := range out.Tables {
		byName[t.Name] = t
		keys := "-"
		if len(t.Keys) > 0 {
			keys = strings.Join(t.Keys, ", ")
		}
		_, _ = fmt.Fprintf(w, "  %-12s %d fields, keys: %s\n", t.Name, len(t.Fields), keys)
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Cascade graph (levels):")
	for i, level := range out.Levels {
		_, _ = fmt.Fprintf(w, "Level %d:\n", i)
		for _, name := range level {
			t := byName[name]
			_, _ = fmt.Fprintf(w, "  %s\n", name)
			if len(t.DependsOn) > 0 {
				_, _ = fmt.Fprintf(w, "    depends on: %s\n", formatEdges(t.DependsOn))
			}
			if len(t.UsedBy) > 0 {
				_, _ = fmt.Fprintf(w, "    used by: %s\n", formatEdges(t.UsedBy))
			}
		}
	}
	_, _ = fmt.Fprintln(w)

	_, err := fmt.Fprintf(w, "Total: %d tables, %d cascade edges\n", out.TotalTables, out.TotalEdges)
	return err
}
