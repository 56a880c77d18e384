package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/profq/internal/action"
	"github.com/leapstack-labs/profq/internal/dataspec"
	"github.com/leapstack-labs/profq/internal/expr"
	"github.com/leapstack-labs/profq/internal/testutil"
)

type decl struct {
	kind action.Kind
	spec string
	expr string
}

func newTestView(t *testing.T, cascading bool, decls ...decl) *View {
	t.Helper()
	c := expr.NewCompiler()
	var acts []*action.Action
	for _, d := range decls {
		a, err := action.New(c, d.kind, d.spec, d.expr)
		require.NoError(t, err)
		acts = append(acts, a)
	}
	v, err := NewView(openTestProfile(t), acts, cascading)
	require.NoError(t, err)
	return v
}

func selectValues(t *testing.T, v *View, spec string) []string {
	t.Helper()
	_, seq, err := v.SelectSpec(context.Background(), dataspec.MustParse(spec))
	require.NoError(t, err)

	var out []string
	for vals, err := range seq {
		require.NoError(t, err)
		out = append(out, vals...)
	}
	return out
}

func TestView_NoActionsReproducesInput(t *testing.T) {
	v := newTestView(t, false)
	p := v.Profile()
	ctx := context.Background()

	for _, table := range p.Relations().Tables() {
		assert.Equal(t, collect(t, p.Rows(ctx, table)), collect(t, v.Select(ctx, table)), table)
	}
}

func TestView_Filter(t *testing.T) {
	v := newTestView(t, false, decl{action.Filter, "item", "int(row['i-length']) < 5"})
	assert.Equal(t, []string{"1"}, selectValues(t, v, "item:i-id"))

	// without cascading, dependent tables are untouched
	assert.Equal(t, []string{"100", "110"}, selectValues(t, v, "parse:parse-id"))
}

func TestView_Apply(t *testing.T) {
	v := newTestView(t, false, decl{action.Applicator, "item:i-length", "int(x) * 2"})
	assert.Equal(t, []string{"6", "20"}, selectValues(t, v, "item:i-length"))
}

func TestView_ApplyBeforeFilter(t *testing.T) {
	// The filter is declared first but sees the applied value.
	v := newTestView(t, false,
		decl{action.Filter, "item:i-length", "int(x) > 10"},
		decl{action.Applicator, "item:i-length", "int(x) * 2"},
	)
	assert.Equal(t, []string{"10"}, selectValues(t, v, "item:i-id"))
}

func TestView_Cascade(t *testing.T) {
	v := newTestView(t, true, decl{action.Filter, "item:i-id", "x != '10'"})

	assert.Equal(t, []string{"1"}, selectValues(t, v, "item:i-id"))
	assert.Equal(t, []string{"100"}, selectValues(t, v, "parse:parse-id"))
	assert.Equal(t, []string{"0", "1"}, selectValues(t, v, "result:result-id"))
	assert.Equal(t, []string{"1"}, selectValues(t, v, "run:run-id"))
}

func TestView_Cascade_IndependentOfSelectOrder(t *testing.T) {
	filter := decl{action.Filter, "item:i-id", "x != '10'"}

	a := newTestView(t, true, filter)
	resultFirst := selectValues(t, a, "result")
	parseAfter := selectValues(t, a, "parse")

	b := newTestView(t, true, filter)
	parseFirst := selectValues(t, b, "parse")
	resultAfter := selectValues(t, b, "result")

	assert.Equal(t, resultFirst, resultAfter)
	assert.Equal(t, parseFirst, parseAfter)
}

func TestView_Cascade_PhenomenonTables(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		RelationsFilename: `item:
  i-id :integer :key
  i-input :string

phenomenon:
  p-id :integer :key
  p-name :string

parameter:
  ip-id :integer :key
  attribute :string

item-phenomenon:
  ip-id :integer :key
  i-id :integer :key
  p-id :integer :key
`,
		"item":            "1@The dog barks.\n10@Kim sleeps.\n",
		"phenomenon":      "5@agreement\n",
		"parameter":       "7@person\n8@number\n",
		"item-phenomenon": "7@10@5\n8@1@5\n",
	})
	p, err := Open(dir, "")
	require.NoError(t, err)
	a, err := action.New(expr.NewCompiler(), action.Filter, "item:i-id", "x != '10'")
	require.NoError(t, err)
	v, err := NewView(p, []*action.Action{a}, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"8"}, selectValues(t, v, "item-phenomenon:ip-id"))
	assert.Equal(t, []string{"8"}, selectValues(t, v, "parameter:ip-id"))
	assert.Equal(t, []string{"5"}, selectValues(t, v, "phenomenon:p-id"))
}

func TestView_Cascade_FromMidChain(t *testing.T) {
	v := newTestView(t, true, decl{action.Filter, "parse", "row['readings'] != '1'"})

	assert.Equal(t, []string{"1", "10"}, selectValues(t, v, "item:i-id"))
	assert.Equal(t, []string{"100"}, selectValues(t, v, "parse:parse-id"))
	assert.Equal(t, []string{"100", "100"}, selectValues(t, v, "result:parse-id"))
}

func TestView_Cascade_Exclusions(t *testing.T) {
	v := newTestView(t, true, decl{action.Filter, "item", "row['i-id'] == '1'"})

	ex, err := v.Exclusions(context.Background())
	require.NoError(t, err)
	assert.True(t, ex.Excludes("item", "i-id", "10"))
	assert.True(t, ex.Excludes("parse", "parse-id", "110"))
	assert.Equal(t, 2, ex.Len())

	plain := newTestView(t, false)
	ex, err = plain.Exclusions(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ex)
}

func TestView_SelectSpec_WholeRow(t *testing.T) {
	v := newTestView(t, false)
	cols, seq, err := v.SelectSpec(context.Background(), dataspec.MustParse("run"))
	require.NoError(t, err)
	assert.Equal(t, []string{"run-id", "platform"}, cols)

	var rows [][]string
	for vals, err := range seq {
		require.NoError(t, err)
		rows = append(rows, vals)
	}
	assert.Equal(t, [][]string{{"1", "sbcl"}}, rows)
}

func TestView_SelectSpec_Errors(t *testing.T) {
	v := newTestView(t, false)

	_, _, err := v.SelectSpec(context.Background(), dataspec.MustParse("nope"))
	var tableErr *UnknownTableError
	assert.True(t, errors.As(err, &tableErr))

	_, _, err = v.SelectSpec(context.Background(), dataspec.MustParse("item:nope"))
	var colErr *UnknownColumnError
	assert.True(t, errors.As(err, &colErr))
}

func TestNewView_ValidatesActions(t *testing.T) {
	c := expr.NewCompiler()
	p := openTestProfile(t)

	unknownTable, err := action.New(c, action.Filter, "nope", "True")
	require.NoError(t, err)
	_, err = NewView(p, []*action.Action{unknownTable}, false)
	var tableErr *UnknownTableError
	assert.True(t, errors.As(err, &tableErr))

	unknownCol, err := action.New(c, action.Applicator, "item:nope", "x")
	require.NoError(t, err)
	_, err = NewView(p, []*action.Action{unknownCol}, false)
	var colErr *UnknownColumnError
	assert.True(t, errors.As(err, &colErr))
}

func TestView_ExpressionErrorPropagates(t *testing.T) {
	v := newTestView(t, false, decl{action.Applicator, "item:i-input", "int(x)"})
	_, seq, err := v.SelectSpec(context.Background(), dataspec.MustParse("item"))
	require.NoError(t, err)

	var evalErr *expr.EvalError
	for _, err := range seq {
		require.Error(t, err)
		assert.True(t, errors.As(err, &evalErr))
	}
}
