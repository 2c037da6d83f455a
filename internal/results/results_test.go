package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/sentinel"
	"luftscan/pkg/testutil"
)

func testSchema(t *testing.T) Schema {
	t.Helper()
	s, err := NewSchema([]string{"M", "r_p"}, []string{"Q", "nucleates"})
	require.NoError(t, err)
	return s
}

func okRow(i int, m, rp, q float64) Row {
	return Row{Index: i, Params: []float64{m, rp}, Observables: []float64{q, 0}, Status: StatusOK}
}

func failedRow(i int, reason string) Row {
	return Row{Index: i, Params: []float64{1, 0}, Status: StatusFailed, Reason: reason}
}

func TestSchema(t *testing.T) {
	s := testSchema(t)
	assert.Equal(t, []string{"index", "M", "r_p", "Q", "nucleates", "status", "reason"}, s.Columns())
	assert.Equal(t, 1, s.ParameterIndex("r_p"))
	assert.Equal(t, 0, s.ObservableIndex("Q"))
	assert.Equal(t, -1, s.ObservableIndex("M"))

	_, err := NewSchema([]string{"M", "Q"}, []string{"Q"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = NewSchema([]string{"status"}, nil)
	assert.Error(t, err)
	_, err = NewSchema(nil, []string{"Q"})
	assert.Error(t, err)
}

func TestTable_AppendOnlyInIndexOrder(t *testing.T) {
	table, err := NewTable(testSchema(t), 3)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, table.State())

	require.NoError(t, table.Write(okRow(0, 1, 2, 3)))
	err = table.Write(okRow(2, 1, 2, 3))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), "gap")
	err = table.Write(okRow(0, 1, 2, 3))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), "duplicate")

	require.NoError(t, table.Write(failedRow(1, "r_p must be positive")))
	require.NoError(t, table.Write(okRow(2, 4, 5, 6)))
	err = table.Write(okRow(3, 1, 2, 3))
	assert.Error(t, err, "beyond requested")

	table.Finalize(false)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 3, table.Requested())
	assert.False(t, table.Truncated())
	assert.Equal(t, StatePartial, table.State())

	ok, failed := table.Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)

	err = table.Write(okRow(3, 1, 2, 3))
	assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
}

func TestTable_ShapeChecks(t *testing.T) {
	table, err := NewTable(testSchema(t), 2)
	require.NoError(t, err)

	err = table.Write(Row{Index: 0, Params: []float64{1}, Observables: []float64{1, 0}, Status: StatusOK})
	assert.Error(t, err)
	err = table.Write(Row{Index: 0, Params: []float64{1, 2}, Observables: []float64{1}, Status: StatusOK})
	assert.Error(t, err)
	err = table.Write(Row{Index: 0, Params: []float64{1, 2}, Status: "maybe"})
	assert.Error(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestTable_Truncation(t *testing.T) {
	table, err := NewTable(testSchema(t), 10)
	require.NoError(t, err)
	for i := range 4 {
		require.NoError(t, table.Write(okRow(i, 1, 2, 3)))
	}

	table.Finalize(false)
	assert.True(t, table.Truncated(), "short table is truncated")
	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 10, table.Requested())
	assert.Equal(t, StateTruncated, table.State())

	full, err := NewTable(testSchema(t), 1)
	require.NoError(t, err)
	require.NoError(t, full.Write(okRow(0, 1, 2, 3)))
	full.Finalize(false)
	assert.Equal(t, StateComplete, full.State())
}

func TestTable_WriteCopiesRow(t *testing.T) {
	table, err := NewTable(testSchema(t), 1)
	require.NoError(t, err)
	row := okRow(0, 1, 2, 3)
	require.NoError(t, table.Write(row))
	row.Params[0] = 99

	got, ok := table.Row(0)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Params[0])
}

func TestTable_Column(t *testing.T) {
	table, err := NewTable(testSchema(t), 3)
	require.NoError(t, err)
	require.NoError(t, table.Write(okRow(0, 1, 10, 0.1)))
	require.NoError(t, table.Write(failedRow(1, "boom")))
	require.NoError(t, table.Write(okRow(2, 3, 30, 0.3)))

	m, err := table.Column("M")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, m)

	q, err := table.Column("Q")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.3}, q)

	_, err = table.Column("nope")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestTee(t *testing.T) {
	var a, b Counter
	sink := Tee(&a, nil, Tee(&b))
	require.NoError(t, sink.Write(okRow(0, 1, 2, 3)))
	require.NoError(t, sink.Write(failedRow(1, "x")))
	assert.Equal(t, 1, a.OK)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, 2, b.Total())

	boom := errors.New("boom")
	var c Counter
	failing := Tee(SinkFunc(func(Row) error { return boom }), &c)
	assert.ErrorIs(t, failing.Write(okRow(0, 1, 2, 3)), boom)
	assert.Equal(t, 0, c.Total())
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, testSchema(t))
	require.NoError(t, w.Write(okRow(0, 1.989e39, 3.086e19, 5.04e-34)))
	require.NoError(t, w.Write(failedRow(1, "collapse: domain error: r_p must be positive, got 0")))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "index,M,r_p,Q,nucleates,status,reason", lines[0])
	assert.Equal(t, "0,1.989e+39,3.086e+19,5.04e-34,0,ok,", lines[1])
	assert.Equal(t, `1,1,0,,,failed,"collapse: domain error: r_p must be positive, got 0"`, lines[2])
}

func TestCSVWriter_EmptyTableStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, testSchema(t))
	require.NoError(t, w.Flush())
	assert.Equal(t, "index,M,r_p,Q,nucleates,status,reason\n", buf.String())
}

func TestReadCSV_RoundTrip(t *testing.T) {
	schema := testSchema(t)
	src, err := NewTable(schema, 3)
	require.NoError(t, err)
	require.NoError(t, src.Write(okRow(0, 1.989e39, 3.086e19, 5.04e-34)))
	require.NoError(t, src.Write(failedRow(1, "boom, with comma")))
	require.NoError(t, src.Write(okRow(2, 0.1, 1e-300, math.Pi)))
	src.Finalize(false)

	var buf bytes.Buffer
	w := NewCSVWriter(&buf, schema)
	require.NoError(t, src.Each(w))
	require.NoError(t, w.Flush())

	t.Run("explicit observables", func(t *testing.T) {
		got, err := ReadCSV(bytes.NewReader(buf.Bytes()), []string{"Q", "nucleates"})
		require.NoError(t, err)
		assert.Equal(t, schema, got.Schema())
		assert.Equal(t, src.Rows(), got.Rows())
		assert.True(t, got.Finalized())
	})

	t.Run("inferred observables", func(t *testing.T) {
		got, err := ReadCSV(bytes.NewReader(buf.Bytes()), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"M", "r_p"}, got.Schema().Parameters)
		assert.Equal(t, []string{"Q", "nucleates"}, got.Schema().Observables)
	})
}

func TestReadCSV_Requested(t *testing.T) {
	doc := "index,M,Q,status\n0,1,2,ok\n1,3,4,ok\n"

	testutil.Given(t, "an export of two rows", func(t *testing.T) {
		testutil.When(t, "no sample count is known", func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(doc), []string{"Q"})
			require.NoError(t, err)
			testutil.Then(t, "the rows are taken as the whole scan", func(t *testing.T) {
				assert.Equal(t, StateComplete, got.State())
			})
		})

		testutil.When(t, "five samples were requested", func(t *testing.T) {
			got, err := ReadCSV(strings.NewReader(doc), []string{"Q"}, Requested(5))
			require.NoError(t, err)
			testutil.Then(t, "the table is truncated", func(t *testing.T) {
				assert.Equal(t, StateTruncated, got.State())
				assert.Equal(t, 5, got.Requested())
				assert.Equal(t, 2, got.Len())
			})
		})

		testutil.When(t, "fewer samples were requested than rows exist", func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(doc), []string{"Q"}, Requested(1))
			testutil.Then(t, "the export is rejected", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			})
		})
	})
}

func TestReadCSV_Errors(t *testing.T) {
	tests := map[string]string{
		"bad header":      "M,Q,status\n",
		"out of order":    "index,M,Q,status\n1,1,1,ok\n",
		"bad status":      "index,M,Q,status\n0,1,1,done\n",
		"short line":      "index,M,Q,status\n0,1,ok\n",
		"bad number":      "index,M,Q,status\n0,x,1,ok\n",
		"missing columns": "index,status\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(doc), []string{"Q"})
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, testSchema(t))
	require.NoError(t, w.Write(okRow(0, 2, 3, math.Inf(1))))
	require.NoError(t, w.Write(failedRow(1, `bad "input"`)))
	require.NoError(t, w.Flush())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"index":0,"M":2,"r_p":3,"Q":null,"nucleates":0,"status":"ok"}`, lines[0])
	assert.Equal(t, `{"index":1,"M":1,"r_p":0,"Q":null,"nucleates":null,"status":"failed","reason":"bad \"input\""}`, lines[1])

	for _, l := range lines {
		assert.True(t, json.Valid([]byte(l)))
	}
}
