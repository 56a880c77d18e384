// Package sqlstore provides the database/sql plumbing shared by the SQL
// output formats: one SQL table per profile table with every column stored
// as text, a profq_relations table carrying the schema with its types and
// key markers, and a profq_runs table recording each write.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/profq/internal/profile"
	"github.com/leapstack-labs/profq/internal/store"
)

const (
	// RunsTable records one row per write into the database.
	RunsTable = "profq_runs"
	// RelationsTable holds one row per field of the relations schema.
	RelationsTable = "profq_relations"
)

// Writer materializes a profile view into an open database. Embed it in
// concrete formats that own the connection.
type Writer struct {
	DB     *sql.DB
	Logger *slog.Logger
	// Now is used for run timestamps; nil uses time.Now.
	Now func() time.Time
}

// Close closes the database connection.
func (w *Writer) Close() error {
	if w.DB != nil {
		if w.Logger != nil {
			w.Logger.Debug("closing database connection")
		}
		return w.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (w *Writer) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if w.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	if _, err := w.DB.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// QuoteIdent quotes a SQL identifier. Profile column names routinely
// contain '-', so every identifier is quoted.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Write replaces every table of src in the database and appends a run record.
func (w *Writer) Write(ctx context.Context, src store.Source, opts store.Options) error {
	if w.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	started := now().UTC()

	if err := w.Exec(ctx, createRunsSQL); err != nil {
		return err
	}

	rel := src.Relations()
	if err := w.writeRelations(ctx, rel); err != nil {
		return fmt.Errorf("failed to write relations: %w", err)
	}

	total := 0
	for _, table := range rel.Tables() {
		schema, _ := rel.Table(table)
		n, err := w.writeTable(ctx, src, table, schema.FieldNames())
		if err != nil {
			return fmt.Errorf("failed to write table %s: %w", table, err)
		}
		opts.Log().Debug("wrote table", "table", table, "rows", n)
		total += n
	}

	insertRun := fmt.Sprintf("INSERT INTO %s (run_id, input, started_at, finished_at, table_count, row_count) VALUES (?, ?, ?, ?, ?, ?)", RunsTable)
	if err := w.Exec(ctx, insertRun,
		opts.RunID, opts.Input,
		started.Format(time.RFC3339), now().UTC().Format(time.RFC3339),
		len(rel.Tables()), total,
	); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

var createRunsSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT PRIMARY KEY,
	input TEXT,
	started_at TEXT,
	finished_at TEXT,
	table_count INTEGER,
	row_count INTEGER
)`, RunsTable)

var createRelationsSQL = fmt.Sprintf(`CREATE TABLE %s (
	table_name TEXT,
	position INTEGER,
	field TEXT,
	type TEXT,
	is_key INTEGER,
	is_partial INTEGER
)`, RelationsTable)

// writeRelations replaces the schema table with the fields of rel.
func (w *Writer) writeRelations(ctx context.Context, rel *profile.Relations) (err error) {
	if err := w.Exec(ctx, "DROP TABLE IF EXISTS "+RelationsTable); err != nil {
		return err
	}
	if err := w.Exec(ctx, createRelationsSQL); err != nil {
		return err
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (table_name, position, field, type, is_key, is_partial) VALUES (?, ?, ?, ?, ?, ?)", RelationsTable))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, table := range rel.Tables() {
		schema, _ := rel.Table(table)
		for i, f := range schema.Fields {
			if _, err := stmt.ExecContext(ctx, table, i, f.Name, f.Type, flag(f.Key), flag(f.Partial)); err != nil {
				return fmt.Errorf("failed to insert field %s.%s: %w", table, f.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeTable recreates one table and fills it inside a transaction.
func (w *Writer) writeTable(ctx context.Context, src store.Source, table string, cols []string) (n int, err error) {
	if len(cols) == 0 {
		return 0, nil
	}
	quoted := make([]string, len(cols))
	defs := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
		defs[i] = quoted[i] + " TEXT"
		marks[i] = "?"
	}
	name := QuoteIdent(table)

	if err := w.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return 0, err
	}
	if err := w.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return 0, err
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	//nolint:gosec // identifiers are quoted
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(cols))
	for row, rerr := range src.Select(ctx, table) {
		if rerr != nil {
			return n, rerr
		}
		for i, v := range row.Values() {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, fmt.Errorf("failed to insert row: %w", err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}
