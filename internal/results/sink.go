package results

import "errors"

// Sink receives rows one at a time, in index order.
type Sink interface {
	Write(Row) error
}

// Flusher is implemented by sinks that buffer.
type Flusher interface {
	Flush() error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Row) error

func (f SinkFunc) Write(r Row) error { return f(r) }

// Discard accepts and drops every row.
var Discard Sink = SinkFunc(func(Row) error { return nil })

type tee []Sink

// Tee fans every row out to all sinks in order. The first error stops the
// row from reaching later sinks.
func Tee(sinks ...Sink) Sink {
	flat := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if inner, ok := s.(tee); ok {
			flat = append(flat, inner...)
			continue
		}
		flat = append(flat, s)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return flat
}

func (t tee) Write(r Row) error {
	for _, s := range t {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes every buffering sink and joins their errors.
func (t tee) Flush() error {
	var errs []error
	for _, s := range t {
		if err := Flush(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes s if it buffers.
func Flush(s Sink) error {
	if f, ok := s.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Counter counts rows by status as they pass through.
type Counter struct {
	OK     int
	Failed int
}

func (c *Counter) Write(r Row) error {
	if r.OK() {
		c.OK++
	} else {
		c.Failed++
	}
	return nil
}

// Total is the number of rows seen.
func (c *Counter) Total() int { return c.OK + c.Failed }
