package sensitivity

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"luftscan/internal/observables"
	"luftscan/internal/prior"
	"luftscan/internal/results"
	dErrors "luftscan/pkg/domain-errors"
)

// Ranked is one parameter's association with an observable.
type Ranked struct {
	Parameter   string `json:"parameter"`
	Coefficient Number `json:"coefficient"`
}

// Rank orders the parameters by |coefficient| against observable,
// strongest first. NaN coefficients sort last; ties keep schema order.
func Rank(m *Matrix, observable string) ([]Ranked, error) {
	o := slices.Index(m.Observables, observable)
	if o < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "observable %q not in matrix", observable)
	}
	out := make([]Ranked, len(m.Parameters))
	for i, p := range m.Parameters {
		out[i] = Ranked{Parameter: p, Coefficient: Number(m.Values[i][o])}
	}
	sort.SliceStable(out, func(a, b int) bool {
		ca, cb := float64(out[a].Coefficient), float64(out[b].Coefficient)
		if math.IsNaN(cb) {
			return !math.IsNaN(ca)
		}
		if math.IsNaN(ca) {
			return false
		}
		return math.Abs(ca) > math.Abs(cb)
	})
	return out, nil
}

// BestFits returns up to n ok rows whose observable is closest to target,
// nearest first. Ties keep index order.
func BestFits(t *results.Table, observable string, target float64, n int) ([]results.Row, error) {
	o := t.Schema().ObservableIndex(observable)
	if o < 0 {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "observable %q not in table", observable)
	}
	if n < 1 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "best-fit count must be at least 1, got %d", n)
	}
	var rows []results.Row
	for _, r := range t.Rows() {
		if r.OK() && !math.IsNaN(r.Observables[o]) {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return math.Abs(rows[a].Observables[o]-target) < math.Abs(rows[b].Observables[o]-target)
	})
	return rows[:min(n, len(rows))], nil
}

// SuggestBounds returns, per parameter of spec present in the table, the
// range spanned by nucleating ok rows, keeping the parameter's kind. The
// result is nil when no row nucleates. A degenerate range (a single
// nucleating value) is widened to the original bounds around that value
// so the suggestion stays a valid Parameter.
func SuggestBounds(t *results.Table, spec *prior.Specification) ([]prior.Parameter, error) {
	schema := t.Schema()
	flag := schema.ObservableIndex(observables.Nucleates)
	if flag < 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "table has no %q column", observables.Nucleates)
	}

	lo := make([]float64, len(schema.Parameters))
	hi := make([]float64, len(schema.Parameters))
	for i := range lo {
		lo[i], hi[i] = math.Inf(1), math.Inf(-1)
	}
	hits := 0
	for _, r := range t.Rows() {
		if !r.OK() || r.Observables[flag] != 1 {
			continue
		}
		hits++
		for i, v := range r.Params {
			lo[i] = math.Min(lo[i], v)
			hi[i] = math.Max(hi[i], v)
		}
	}
	if hits == 0 {
		return nil, nil
	}

	var out []prior.Parameter
	for _, p := range spec.Parameters() {
		i := schema.ParameterIndex(p.Name)
		if i < 0 {
			continue
		}
		s := prior.Parameter{Name: p.Name, Kind: p.Kind, Lower: lo[i], Upper: hi[i]}
		if s.Lower >= s.Upper {
			s.Lower, s.Upper = p.Lower, p.Upper
		}
		out = append(out, s)
	}
	return out, nil
}

// ObservableStats describes one observable over the ok rows.
type ObservableStats struct {
	Name   string `json:"name"`
	Mean   Number `json:"mean"`
	StdDev Number `json:"std_dev"`
	Min    Number `json:"min"`
	Max    Number `json:"max"`
}

// Summary is the headline report of a scan.
type Summary struct {
	Requested   int    `json:"requested"`
	Completed   int    `json:"completed"`
	OK          int    `json:"ok"`
	Failed      int    `json:"failed"`
	Truncated   bool   `json:"truncated"`
	SuccessRate Number `json:"success_rate"`
	// NucleationFraction is the share of ok rows that nucleate, NaN when
	// the table has no nucleates column or no ok rows.
	NucleationFraction Number            `json:"nucleation_fraction"`
	Observables        []ObservableStats `json:"observables"`
}

// Summarize reports counts and per-observable statistics.
func Summarize(t *results.Table) (Summary, error) {
	ok, failed := t.Counts()
	s := Summary{
		Requested:          t.Requested(),
		Completed:          ok + failed,
		OK:                 ok,
		Failed:             failed,
		Truncated:          t.Truncated(),
		SuccessRate:        Number(ratio(ok, ok+failed)),
		NucleationFraction: Number(math.NaN()),
	}
	for _, name := range t.Schema().Observables {
		col, err := t.Column(name)
		if err != nil {
			return Summary{}, err
		}
		s.Observables = append(s.Observables, describe(name, col))
		if name == observables.Nucleates {
			hits := 0
			for _, v := range col {
				if v == 1 {
					hits++
				}
			}
			s.NucleationFraction = Number(ratio(hits, len(col)))
		}
	}
	return s, nil
}

func describe(name string, col []float64) ObservableStats {
	nan := Number(math.NaN())
	if len(col) == 0 {
		return ObservableStats{Name: name, Mean: nan, StdDev: nan, Min: nan, Max: nan}
	}
	mean, std := stat.MeanStdDev(col, nil)
	if len(col) == 1 {
		std = math.NaN()
	}
	return ObservableStats{
		Name:   name,
		Mean:   Number(mean),
		StdDev: Number(std),
		Min:    Number(floats.Min(col)),
		Max:    Number(floats.Max(col)),
	}
}

func ratio(a, b int) float64 {
	if b == 0 {
		return math.NaN()
	}
	return float64(a) / float64(b)
}
