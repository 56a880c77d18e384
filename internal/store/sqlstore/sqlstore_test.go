package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/profq/internal/profile"
	"github.com/leapstack-labs/profq/internal/store"
	"github.com/leapstack-labs/profq/internal/testutil"
)

func singleTableView(t *testing.T) *profile.View {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"relations": "item:\n  i-id :integer :key\n  i-input :string\n",
		"item":      "1@dog\n2@cat\n",
	})
	p, err := profile.Open(dir, "")
	require.NoError(t, err)
	v, err := profile.NewView(p, nil, false)
	require.NoError(t, err)
	return v
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"item", `"item"`},
		{"i-id", `"i-id"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteIdent(tt.in))
	}
}

func TestWriter_Write(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS profq_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS profq_relations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE profq_relations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	relPrep := mock.ExpectPrepare("INSERT INTO profq_relations")
	relPrep.ExpectExec().WithArgs("item", 0, "i-id", "integer", 1, 0).WillReturnResult(sqlmock.NewResult(1, 1))
	relPrep.ExpectExec().WithArgs("item", 1, "i-input", "string", 0, 0).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`DROP TABLE IF EXISTS "item"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE "item" \("i-id" TEXT, "i-input" TEXT\)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO "item"`)
	prep.ExpectExec().WithArgs("1", "dog").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("2", "cat").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO profq_runs").
		WithArgs("run-1", "in", "2024-05-01T12:00:00Z", "2024-05-01T12:00:00Z", 1, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	w := &Writer{DB: db, Now: fixedNow}
	err = w.Write(context.Background(), singleTableView(t), store.Options{RunID: "run-1", Input: "in"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectRelations expects the schema table of singleTableView to be written.
func expectRelations(mock sqlmock.Sqlmock) {
	mock.ExpectExec("DROP TABLE IF EXISTS profq_relations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE profq_relations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO profq_relations")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
}

func TestWriter_Write_Errors(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		errMsg    string
	}{
		{
			name: "runs table",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS profq_runs").WillReturnError(assert.AnError)
			},
			errMsg: "failed to execute SQL",
		},
		{
			name: "relations insert rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS profq_runs").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("DROP TABLE IF EXISTS profq_relations").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("CREATE TABLE profq_relations").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectBegin()
				prep := mock.ExpectPrepare("INSERT INTO profq_relations")
				prep.ExpectExec().WillReturnError(assert.AnError)
				prep.WillBeClosed()
				mock.ExpectRollback()
			},
			errMsg: "failed to write relations: failed to insert field item.i-id",
		},
		{
			name: "create table",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS profq_runs").WillReturnResult(sqlmock.NewResult(0, 0))
				expectRelations(mock)
				mock.ExpectExec(`DROP TABLE IF EXISTS "item"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`CREATE TABLE "item"`).WillReturnError(assert.AnError)
			},
			errMsg: "failed to write table item",
		},
		{
			name: "insert rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS profq_runs").WillReturnResult(sqlmock.NewResult(0, 0))
				expectRelations(mock)
				mock.ExpectExec(`DROP TABLE IF EXISTS "item"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`CREATE TABLE "item"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectBegin()
				prep := mock.ExpectPrepare(`INSERT INTO "item"`)
				prep.ExpectExec().WillReturnError(assert.AnError)
				prep.WillBeClosed()
				mock.ExpectRollback()
			},
			errMsg: "failed to insert row",
		},
		{
			name: "begin",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS profq_runs").WillReturnResult(sqlmock.NewResult(0, 0))
				expectRelations(mock)
				mock.ExpectExec(`DROP TABLE IF EXISTS "item"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`CREATE TABLE "item"`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			errMsg: "failed to begin transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			tt.setupMock(mock)

			w := &Writer{DB: db, Now: fixedNow}
			err = w.Write(context.Background(), singleTableView(t), store.Options{RunID: "run-1"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWriter_NotConnected(t *testing.T) {
	w := &Writer{}
	assert.ErrorContains(t, w.Exec(context.Background(), "SELECT 1"), "database connection not established")
	assert.ErrorContains(t, w.Write(context.Background(), nil, store.Options{}), "database connection not established")
	assert.NoError(t, w.Close())
}

func TestWriter_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	w := &Writer{DB: db, Logger: testutil.NewTestLogger(t)}
	require.NoError(t, w.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
