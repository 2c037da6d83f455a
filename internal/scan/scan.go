package scan

import (
	"context"

	"luftscan/internal/evaluator"
	"luftscan/internal/results"
)

// Scan runs req without a store and returns the finalized table. Workers
// default to GOMAXPROCS. A cancelled scan returns the rows computed so far
// with a nil error.
func Scan(ctx context.Context, req Request) (*results.Table, error) {
	var opts []evaluator.Option
	if req.Workers > 0 {
		opts = append(opts, evaluator.WithWorkers(req.Workers))
	}
	if req.BatchSize > 0 {
		opts = append(opts, evaluator.WithBatchSize(req.BatchSize))
	}
	p, err := prepare(req, opts...)
	if err != nil {
		return nil, err
	}
	table, err := results.NewTable(p.schema, req.Samples)
	if err != nil {
		return nil, err
	}
	out, err := p.eval.Run(ctx, p.binding, p.design.Points, table)
	table.Finalize(out.Truncated)
	return table, err
}
