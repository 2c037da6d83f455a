package evaluator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luftscan/internal/observables"
	"luftscan/internal/prior"
	"luftscan/internal/results"
	"luftscan/internal/sampler"
	dErrors "luftscan/pkg/domain-errors"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type funcModel struct {
	names []string
	fn    func(prior.Vector) ([]float64, error)
}

func (m funcModel) Observables() []string                      { return m.names }
func (m funcModel) Evaluate(v prior.Vector) ([]float64, error) { return m.fn(v) }

type recordingObserver struct {
	batches atomic.Int64
	failed  atomic.Int64
}

func (o *recordingObserver) ObserveBatch(_, failed int, _ time.Duration) {
	o.batches.Add(1)
	o.failed.Add(int64(failed))
}

func collapseScan(t *testing.T, n int, seed uint64) (*observables.Binding, *sampler.Design, results.Schema) {
	t.Helper()
	spec, err := prior.NewSpecification(
		prior.Parameter{Name: "M", Kind: prior.LogUniform, Lower: 1.989e36, Upper: 1.989e41},
		prior.Parameter{Name: "r_p", Kind: prior.LogUniform, Lower: 3.086e18, Upper: 3.086e21},
		prior.Parameter{Name: "v_rel", Kind: prior.LogUniform, Lower: 5e4, Upper: 1e6},
		prior.Parameter{Name: "density_contrast", Kind: prior.Uniform, Lower: 0, Upper: 10},
	)
	require.NoError(t, err)
	binding, err := observables.Bind(spec, observables.All(), map[string]float64{"alpha": 1e-3, "m_eq": 1e-5, "Q_c": 1})
	require.NoError(t, err)
	design, err := sampler.Sample(spec, n, seed, sampler.LatinHypercube)
	require.NoError(t, err)
	schema, err := results.NewSchema(spec.Names(), binding.Observables())
	require.NoError(t, err)
	return binding, design, schema
}

func run(t *testing.T, ctx context.Context, e *Evaluator, model Model, points []prior.Vector, schema results.Schema) (*results.Table, Outcome) {
	t.Helper()
	table, err := results.NewTable(schema, len(points))
	require.NoError(t, err)
	out, err := e.Run(ctx, model, points, table)
	require.NoError(t, err)
	table.Finalize(out.Truncated)
	return table, out
}

func TestNew_ConfigurationErrors(t *testing.T) {
	_, err := New(WithWorkers(0))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	_, err = New(WithWorkers(2), WithBatchSize(-1))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	e, err := New(WithWorkers(3))
	require.NoError(t, err)
	assert.Equal(t, 3, e.Workers())
	assert.Equal(t, 192, e.BatchSize())
}

func TestRun_WorkerCountDoesNotChangeResults(t *testing.T) {
	binding, design, schema := collapseScan(t, 500, 42)

	var tables []*results.Table
	for _, w := range []int{1, 2, 8, 32} {
		e, err := New(WithWorkers(w), WithBatchSize(37), WithLogger(discard))
		require.NoError(t, err)
		table, out := run(t, context.Background(), e, binding, design.Points, schema)
		assert.Equal(t, 500, out.Completed)
		assert.False(t, out.Truncated)
		tables = append(tables, table)
	}
	for _, tbl := range tables[1:] {
		assert.Equal(t, tables[0].Rows(), tbl.Rows())
	}
	for i, row := range tables[0].Rows() {
		assert.Equal(t, i, row.Index)
	}
}

func TestRun_SameSeedIsBitIdentical(t *testing.T) {
	binding, a, schema := collapseScan(t, 100, 7)
	_, b, _ := collapseScan(t, 100, 7)

	e, err := New(WithWorkers(4), WithLogger(discard))
	require.NoError(t, err)
	ta, _ := run(t, context.Background(), e, binding, a.Points, schema)
	tb, _ := run(t, context.Background(), e, binding, b.Points, schema)
	assert.Equal(t, ta.Rows(), tb.Rows())
}

func TestRun_DomainErrorsAreContained(t *testing.T) {
	spec, err := prior.NewSpecification(prior.Parameter{Name: "r_p", Kind: prior.Uniform, Lower: 0, Upper: 1e20})
	require.NoError(t, err)
	binding, err := observables.Bind(spec, nil, map[string]float64{
		"M": 1.989e39, "v_rel": 3e5, "alpha": 1e-3, "m_eq": 1e-5, "Q_c": 1,
	})
	require.NoError(t, err)
	schema, err := results.NewSchema(spec.Names(), binding.Observables())
	require.NoError(t, err)

	var points []prior.Vector
	for _, rp := range []float64{1e19, 0, 3.086e19, 5e19} {
		v, err := spec.Vector([]float64{rp})
		require.NoError(t, err)
		points = append(points, v)
	}

	e, err := New(WithWorkers(4), WithLogger(discard))
	require.NoError(t, err)
	table, out := run(t, context.Background(), e, binding, points, schema)

	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 4, table.Len())
	rows := table.Rows()
	assert.Equal(t, results.StatusFailed, rows[1].Status)
	assert.Contains(t, rows[1].Reason, "r_p must be positive")
	assert.Nil(t, rows[1].Observables)
	for _, i := range []int{0, 2, 3} {
		assert.True(t, rows[i].OK(), "row %d", i)
	}
	assert.Equal(t, results.StatePartial, table.State())
}

func TestRun_PanicsBecomeFailedRows(t *testing.T) {
	_, design, schema := collapseScan(t, 10, 1)
	model := funcModel{names: schema.Observables, fn: func(v prior.Vector) ([]float64, error) {
		if v.At(3) > 5 {
			panic("foam overflow")
		}
		return make([]float64, len(schema.Observables)), nil
	}}

	e, err := New(WithWorkers(3), WithLogger(discard))
	require.NoError(t, err)
	table, out := run(t, context.Background(), e, model, design.Points, schema)
	assert.Equal(t, 10, table.Len())
	assert.Equal(t, 5, out.Failed, "half the LHS strata lie above 5")
	for _, row := range table.Rows() {
		if !row.OK() {
			assert.Equal(t, "panic: foam overflow", row.Reason)
		}
	}
}

func TestRun_WrongObservableCountFailsRow(t *testing.T) {
	_, design, schema := collapseScan(t, 2, 1)
	model := funcModel{names: schema.Observables, fn: func(prior.Vector) ([]float64, error) {
		return []float64{1}, nil
	}}
	e, err := New(WithWorkers(1), WithLogger(discard))
	require.NoError(t, err)
	_, out := run(t, context.Background(), e, model, design.Points, schema)
	assert.Equal(t, 2, out.Failed)
}

func TestRun_CancellationTruncatesAfterInFlightBatch(t *testing.T) {
	_, design, schema := collapseScan(t, 100, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	model := funcModel{names: schema.Observables, fn: func(prior.Vector) ([]float64, error) {
		if calls.Add(1) == 15 {
			cancel()
		}
		return make([]float64, len(schema.Observables)), nil
	}}

	observer := &recordingObserver{}
	e, err := New(WithWorkers(4), WithBatchSize(10), WithLogger(discard), WithBatchObserver(observer))
	require.NoError(t, err)
	table, out := run(t, ctx, e, model, design.Points, schema)

	assert.True(t, out.Truncated)
	assert.Equal(t, 20, out.Completed, "second batch finishes before the check")
	assert.Equal(t, 2, out.Batches)
	assert.Equal(t, 20, table.Len())
	assert.Equal(t, 100, table.Requested())
	assert.True(t, table.Truncated())
	assert.Equal(t, results.StateTruncated, table.State())
	assert.EqualValues(t, 2, observer.batches.Load())

	for i, row := range table.Rows() {
		assert.Equal(t, i, row.Index)
		assert.True(t, row.OK())
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	_, design, schema := collapseScan(t, 10, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(WithWorkers(2), WithLogger(discard))
	require.NoError(t, err)
	table, out := run(t, ctx, e, funcModel{names: schema.Observables}, design.Points, schema)
	assert.True(t, out.Truncated)
	assert.Equal(t, 0, table.Len())
}

func TestRun_SinkErrorStopsRun(t *testing.T) {
	binding, design, _ := collapseScan(t, 10, 3)
	boom := errors.New("disk full")
	var seen int
	sink := results.SinkFunc(func(r results.Row) error {
		if r.Index == 4 {
			return boom
		}
		seen++
		return nil
	})

	e, err := New(WithWorkers(2), WithBatchSize(3), WithLogger(discard))
	require.NoError(t, err)
	out, err := e.Run(context.Background(), binding, design.Points, sink)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 4, out.Completed)
	assert.Equal(t, 4, seen)
}
