package profile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRelations(t *testing.T) {
	src := `
# comment line
item:
  i-id :integer :key   # trailing comment
  i-input :string
  i-wf :integer :partial

parse:
	parse-id :integer :key
	i-id :integer :key
	readings
`
	rel, err := ParseRelations(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"item", "parse"}, rel.Tables())

	item, ok := rel.Table("item")
	require.True(t, ok)
	assert.Equal(t, []string{"i-id", "i-input", "i-wf"}, item.FieldNames())
	assert.Equal(t, []string{"i-id"}, item.Keys())
	assert.Equal(t, Field{Name: "i-wf", Type: "integer", Partial: true}, item.Fields[2])
	assert.Equal(t, 1, item.Index("i-input"))
	assert.Equal(t, -1, item.Index("nope"))

	assert.Equal(t, []string{"parse-id", "i-id"}, rel.Keys("parse"))
	assert.Equal(t, Field{Name: "readings"}, mustTable(t, rel, "parse").Fields[2])
	assert.Nil(t, rel.Keys("nope"))

	assert.True(t, rel.Partial("item", "i-wf"))
	assert.False(t, rel.Partial("item", "i-id"))
	assert.False(t, rel.Partial("item", "nope"))
	assert.False(t, rel.Partial("nope", "i-wf"))
}

func TestParseRelations_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"field before table", "  i-id :integer\n", "field declared before any table"},
		{"header without colon", "item\n  i-id\n", "expected table header"},
		{"duplicate table", "a:\n  x\na:\n  y\n", `duplicate table "a"`},
		{"duplicate field", "a:\n  x\n  x\n", `duplicate field "x"`},
		{"malformed attribute", "a:\n  x key\n", `malformed attribute "key"`},
		{"two types", "a:\n  x :integer :string\n", "multiple types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRelations(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRelations_WriteTo_RoundTrip(t *testing.T) {
	rel, err := ReadRelations(filepath.Join("testdata", "profile", RelationsFilename))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = rel.WriteTo(&buf)
	require.NoError(t, err)

	again, err := ParseRelations(&buf)
	require.NoError(t, err)
	assert.Equal(t, rel.Tables(), again.Tables())
	for _, name := range rel.Tables() {
		assert.Equal(t, mustTable(t, rel, name).Fields, mustTable(t, again, name).Fields, name)
	}
}

func TestReadRelations_Missing(t *testing.T) {
	_, err := ReadRelations(filepath.Join(t.TempDir(), "relations"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open relations file")
}

func mustTable(t *testing.T, rel *Relations, name string) *TableSchema {
	t.Helper()
	ts, ok := rel.Table(name)
	require.True(t, ok, "table %s", name)
	return ts
}
