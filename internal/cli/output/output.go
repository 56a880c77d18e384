// Package output renders selected profile rows for the terminal.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/term"

	"github.com/leapstack-labs/profq/internal/profile/field"
)

// Supported selection formats.
const (
	FormatPlain    = "plain"
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatAuto     = "auto"
)

// Formats lists the accepted format names.
func Formats() []string {
	return []string{FormatPlain, FormatTable, FormatMarkdown, FormatJSON, FormatCSV, FormatAuto}
}

// UnknownFormatError is returned for an unsupported format name.
type UnknownFormatError struct {
	Name string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown select format %q (available: %s)", e.Name, strings.Join(Formats(), ", "))
}

// Render writes rows to w in the named format. cols names the values of
// each row, in order.
func Render(w io.Writer, format string, cols []string, rows iter.Seq2[[]string, error]) error {
	switch format {
	case "", FormatPlain:
		return renderPlain(w, rows)
	case FormatTable:
		return renderTable(w, cols, rows)
	case "md", FormatMarkdown:
		return renderMarkdown(w, cols, rows)
	case FormatJSON:
		return renderJSON(w, cols, rows)
	case FormatCSV:
		return renderCSV(w, cols, rows)
	case FormatAuto:
		if isTerminal(w) {
			return renderTable(w, cols, rows)
		}
		return renderPlain(w, rows)
	default:
		return &UnknownFormatError{Name: format}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// renderPlain writes each row as it is stored in a table file.
func renderPlain(w io.Writer, rows iter.Seq2[[]string, error]) error {
	for vals, err := range rows {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, field.Join(vals)); err != nil {
			return err
		}
	}
	return nil
}

func collect(rows iter.Seq2[[]string, error]) ([][]string, error) {
	var out [][]string
	for vals, err := range rows {
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, nil
}

func newTable(cols []string, results [][]string) table.Writer {
	t := table.NewWriter()

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	t.SetStyle(style)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		header[i] = col
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	for _, vals := range results {
		row := make(table.Row, len(vals))
		for i, v := range vals {
			row[i] = v
		}
		t.AppendRow(row)
	}
	return t
}

func renderTable(w io.Writer, cols []string, rows iter.Seq2[[]string, error]) error {
	results, err := collect(rows)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}

	t := newTable(cols, results)
	t.SetOutputMirror(w)
	t.Render()
	_, err = fmt.Fprintf(w, "(%d rows)\n", len(results))
	return err
}

func renderMarkdown(w io.Writer, cols []string, rows iter.Seq2[[]string, error]) error {
	results, err := collect(rows)
	if err != nil {
		return err
	}
	t := newTable(cols, results)
	t.SetOutputMirror(w)
	t.RenderMarkdown()
	return nil
}

// renderJSON writes an array of objects whose keys keep column order.
func renderJSON(w io.Writer, cols []string, rows iter.Seq2[[]string, error]) error {
	results, err := collect(rows)
	if err != nil {
		return err
	}

	objects := make([]*orderedmap.OrderedMap[string, any], 0, len(results))
	for _, vals := range results {
		obj := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](len(cols)))
		for j, col := range cols {
			if j < len(vals) {
				obj.Set(col, vals[j])
			} else {
				obj.Set(col, nil)
			}
		}
		objects = append(objects, obj)
	}

	out, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

func renderCSV(w io.Writer, cols []string, rows iter.Seq2[[]string, error]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for vals, err := range rows {
		if err != nil {
			return err
		}
		if err := cw.Write(vals); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
