package scan

import (
	"context"

	"luftscan/internal/results"
)

// batchSink buffers rows and hands them to flush in groups of size. flush
// must not retain the slice.
type batchSink struct {
	ctx   context.Context
	size  int
	buf   []results.Row
	flush func(ctx context.Context, rows []results.Row) error
}

func newBatchSink(ctx context.Context, size int, flush func(context.Context, []results.Row) error) *batchSink {
	return &batchSink{ctx: ctx, size: size, buf: make([]results.Row, 0, size), flush: flush}
}

func (b *batchSink) Write(r results.Row) error {
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.size {
		return b.Flush()
	}
	return nil
}

func (b *batchSink) Flush() error {
	if len(b.buf) == 0 {
		return nil
	}
	err := b.flush(b.ctx, b.buf)
	b.buf = b.buf[:0]
	return err
}
