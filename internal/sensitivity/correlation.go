// Package sensitivity relates sampled parameters to observables over the
// ok rows of a result table. Its output is advisory: it informs the next
// scan's bounds and never feeds back into the scan that produced it.
package sensitivity

import (
	"encoding/json"
	"math"
	"slices"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"luftscan/internal/results"
	dErrors "luftscan/pkg/domain-errors"
)

// Method is an association statistic.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
)

// ParseMethod reads a method name. The empty string selects Pearson.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", Pearson:
		return Pearson, nil
	case Spearman:
		return Spearman, nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown correlation method %q", s)
	}
}

// Correlate computes the statistic between two equal-length columns. The
// result is NaN when there are fewer than two points or either column is
// constant.
func Correlate(method Method, x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 || constant(x) || constant(y) {
		return math.NaN()
	}
	if method == Spearman {
		x, y = Ranks(x), Ranks(y)
	}
	r := stat.Correlation(x, y, nil)
	if math.IsInf(r, 0) {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, r))
}

// Ranks returns 1-based ranks, averaging ties. NaN values rank last.
func Ranks(x []float64) []float64 {
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		xa, xb := x[order[a]], x[order[b]]
		if math.IsNaN(xb) {
			return !math.IsNaN(xa)
		}
		return xa < xb
	})

	ranks := make([]float64, len(x))
	for i := 0; i < len(order); {
		j := i + 1
		for j < len(order) && x[order[j]] == x[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

// Matrix holds one coefficient per (parameter, observable) pair, computed
// over the ok rows of a table.
type Matrix struct {
	Method      Method
	Parameters  []string
	Observables []string
	// Values is indexed [parameter][observable].
	Values [][]float64
	// Samples is the number of ok rows the statistic was computed over.
	Samples int
}

// At returns the coefficient for a pair.
func (m *Matrix) At(parameter, observable string) (float64, bool) {
	p := slices.Index(m.Parameters, parameter)
	o := slices.Index(m.Observables, observable)
	if p < 0 || o < 0 {
		return math.NaN(), false
	}
	return m.Values[p][o], true
}

// Analyze computes the matrix for every parameter and observable of the
// table. Fewer than two ok rows yield a matrix of NaN, not an error.
func Analyze(t *results.Table, method Method) (*Matrix, error) {
	if method == "" {
		method = Pearson
	}
	if method != Pearson && method != Spearman {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown correlation method %q", method)
	}
	schema := t.Schema()
	m := &Matrix{
		Method:      method,
		Parameters:  slices.Clone(schema.Parameters),
		Observables: slices.Clone(schema.Observables),
		Values:      make([][]float64, len(schema.Parameters)),
	}

	obs := make([][]float64, len(schema.Observables))
	for j, name := range schema.Observables {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		obs[j] = col
	}
	for i, name := range schema.Parameters {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		m.Samples = len(col)
		m.Values[i] = make([]float64, len(obs))
		for j := range obs {
			m.Values[i][j] = Correlate(method, col, obs[j])
		}
	}
	return m, nil
}

type matrixJSON struct {
	Method      Method     `json:"method"`
	Parameters  []string   `json:"parameters"`
	Observables []string   `json:"observables"`
	Values      [][]Number `json:"values"`
	Samples     int        `json:"samples"`
}

// MarshalJSON writes NaN coefficients as null.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	out := matrixJSON{
		Method:      m.Method,
		Parameters:  m.Parameters,
		Observables: m.Observables,
		Values:      make([][]Number, len(m.Values)),
		Samples:     m.Samples,
	}
	for i, row := range m.Values {
		out.Values[i] = make([]Number, len(row))
		for j, v := range row {
			out.Values[i][j] = Number(v)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null coefficients as NaN.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var in matrixJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Matrix{
		Method:      in.Method,
		Parameters:  in.Parameters,
		Observables: in.Observables,
		Values:      make([][]float64, len(in.Values)),
		Samples:     in.Samples,
	}
	for i, row := range in.Values {
		m.Values[i] = make([]float64, len(row))
		for j, v := range row {
			m.Values[i][j] = float64(v)
		}
	}
	return nil
}
