package sensitivity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luftscan/internal/prior"
	"luftscan/internal/results"
	dErrors "luftscan/pkg/domain-errors"
)

// buildTable lays out rows of (a, b) -> (Q, nucleates). Rows whose Q is
// NaN are recorded as failed.
func buildTable(t *testing.T, rows [][4]float64) *results.Table {
	t.Helper()
	schema, err := results.NewSchema([]string{"a", "b"}, []string{"Q", "nucleates"})
	require.NoError(t, err)
	table, err := results.NewTable(schema, len(rows))
	require.NoError(t, err)
	for i, r := range rows {
		row := results.Row{Index: i, Params: []float64{r[0], r[1]}, Status: results.StatusOK, Observables: []float64{r[2], r[3]}}
		if math.IsNaN(r[2]) {
			row.Status, row.Observables, row.Reason = results.StatusFailed, nil, "domain"
		}
		require.NoError(t, table.Write(row))
	}
	table.Finalize(false)
	return table
}

func TestCorrelate(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 1, Correlate(Pearson, x, []float64{2, 4, 6, 8, 10}), 1e-12)
	assert.InDelta(t, -1, Correlate(Pearson, x, []float64{5, 4, 3, 2, 1}), 1e-12)

	// Monotone but non-linear: Spearman sees a perfect relation.
	cubic := []float64{1, 8, 27, 64, 125}
	assert.Less(t, Correlate(Pearson, x, cubic), 1.0)
	assert.InDelta(t, 1, Correlate(Spearman, x, cubic), 1e-12)

	t.Run("NaN edge cases", func(t *testing.T) {
		for _, m := range []Method{Pearson, Spearman} {
			assert.True(t, math.IsNaN(Correlate(m, nil, nil)))
			assert.True(t, math.IsNaN(Correlate(m, []float64{1}, []float64{2})))
			assert.True(t, math.IsNaN(Correlate(m, x, []float64{3, 3, 3, 3, 3})), "constant column")
			assert.True(t, math.IsNaN(Correlate(m, x, []float64{1, 2})), "length mismatch")
		}
	})
}

func TestRanks_AverageTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, Ranks([]float64{0.3, -1, 0}))
}

func TestAnalyze(t *testing.T) {
	table := buildTable(t, [][4]float64{
		{1, 5, 10, 0},
		{2, 3, 20, 0},
		{3, 9, math.NaN(), 0},
		{4, 1, 40, 1},
		{5, 7, 50, 1},
	})

	for _, method := range []Method{Pearson, Spearman} {
		m, err := Analyze(table, method)
		require.NoError(t, err)
		assert.Equal(t, 4, m.Samples, "failed rows excluded")

		aq, ok := m.At("a", "Q")
		require.True(t, ok)
		assert.InDelta(t, 1, aq, 1e-12)

		_, ok = m.At("a", "r_crit")
		assert.False(t, ok)
	}

	_, err := Analyze(table, "kendall")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestAnalyze_FewerThanTwoOKRowsIsNaN(t *testing.T) {
	table := buildTable(t, [][4]float64{
		{1, 5, math.NaN(), 0},
		{2, 3, 20, 0},
		{3, 9, math.NaN(), 0},
	})
	m, err := Analyze(table, Pearson)
	require.NoError(t, err)
	for _, row := range m.Values {
		for _, v := range row {
			assert.True(t, math.IsNaN(v))
		}
	}
}

func TestMatrix_JSONKeepsNaNAsNull(t *testing.T) {
	m := &Matrix{
		Method:      Spearman,
		Parameters:  []string{"a"},
		Observables: []string{"Q", "nucleates"},
		Values:      [][]float64{{0.5, math.NaN()}},
		Samples:     3,
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"spearman","parameters":["a"],"observables":["Q","nucleates"],"values":[[0.5,null]],"samples":3}`, string(data))

	var back Matrix
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0.5, back.Values[0][0])
	assert.True(t, math.IsNaN(back.Values[0][1]))
}

func TestRank(t *testing.T) {
	m := &Matrix{
		Parameters:  []string{"a", "b", "c", "d"},
		Observables: []string{"Q"},
		Values:      [][]float64{{0.2}, {math.NaN()}, {-0.9}, {0.5}},
	}
	ranked, err := Rank(m, "Q")
	require.NoError(t, err)
	var order []string
	for _, r := range ranked {
		order = append(order, r.Parameter)
	}
	assert.Equal(t, []string{"c", "d", "a", "b"}, order)

	_, err = Rank(m, "margin")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestBestFits(t *testing.T) {
	table := buildTable(t, [][4]float64{
		{1, 0, 0.5, 0},
		{2, 0, math.NaN(), 0},
		{3, 0, 1.1, 1},
		{4, 0, 0.95, 0},
		{5, 0, 3, 1},
	})
	rows, err := BestFits(table, "Q", 1, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Index)
	assert.Equal(t, 2, rows[1].Index)

	rows, err = BestFits(table, "Q", 1, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	_, err = BestFits(table, "Q", 1, 0)
	assert.Error(t, err)
	_, err = BestFits(table, "log10_Q", 1, 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSuggestBounds(t *testing.T) {
	spec, err := prior.NewSpecification(
		prior.Parameter{Name: "a", Kind: prior.LogUniform, Lower: 0.1, Upper: 100},
		prior.Parameter{Name: "b", Kind: prior.Uniform, Lower: -10, Upper: 10},
	)
	require.NoError(t, err)

	t.Run("range over nucleating rows", func(t *testing.T) {
		table := buildTable(t, [][4]float64{
			{1, 2, 5, 1},
			{50, -3, 9, 1},
			{90, 8, 1, 0},
			{7, 9, math.NaN(), 0},
		})
		got, err := SuggestBounds(table, spec)
		require.NoError(t, err)
		assert.Equal(t, []prior.Parameter{
			{Name: "a", Kind: prior.LogUniform, Lower: 1, Upper: 50},
			{Name: "b", Kind: prior.Uniform, Lower: -3, Upper: 2},
		}, got)
		for _, p := range got {
			assert.NoError(t, p.Validate())
		}
	})

	t.Run("single hit falls back to original bounds", func(t *testing.T) {
		table := buildTable(t, [][4]float64{{3, 4, 1, 1}, {5, 6, 0, 0}})
		got, err := SuggestBounds(table, spec)
		require.NoError(t, err)
		assert.Equal(t, spec.Parameters(), got)
	})

	t.Run("no nucleation", func(t *testing.T) {
		table := buildTable(t, [][4]float64{{3, 4, 1, 0}})
		got, err := SuggestBounds(table, spec)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSummarize(t *testing.T) {
	table := buildTable(t, [][4]float64{
		{1, 0, 2, 0},
		{2, 0, math.NaN(), 0},
		{3, 0, 4, 1},
		{4, 0, 6, 1},
	})
	s, err := Summarize(table)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Requested)
	assert.Equal(t, 4, s.Completed)
	assert.Equal(t, 3, s.OK)
	assert.Equal(t, 1, s.Failed)
	assert.False(t, s.Truncated)
	assert.InDelta(t, 0.75, float64(s.SuccessRate), 1e-12)
	assert.InDelta(t, 2.0/3, float64(s.NucleationFraction), 1e-12)

	require.Len(t, s.Observables, 2)
	q := s.Observables[0]
	assert.Equal(t, "Q", q.Name)
	assert.InDelta(t, 4, float64(q.Mean), 1e-12)
	assert.InDelta(t, 2, float64(q.StdDev), 1e-12)
	assert.Equal(t, Number(2), q.Min)
	assert.Equal(t, Number(6), q.Max)

	_, err = json.Marshal(s)
	assert.NoError(t, err)
}

func TestSummarize_EmptyTable(t *testing.T) {
	table := buildTable(t, nil)
	s, err := Summarize(table)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(s.SuccessRate)))
	assert.True(t, math.IsNaN(float64(s.Observables[0].Mean)))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success_rate":null`)
}
