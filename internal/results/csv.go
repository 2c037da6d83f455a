package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"luftscan/internal/observables"
	dErrors "luftscan/pkg/domain-errors"
)

// CSVWriter exports rows as delimited text. The header is written before
// the first row, or on Flush for an empty table.
type CSVWriter struct {
	w       *csv.Writer
	schema  Schema
	header  bool
	record  []string
	pending int
}

// FlushEvery is how many rows CSVWriter buffers before flushing.
const FlushEvery = 256

// NewCSVWriter creates a writer for the given schema.
func NewCSVWriter(w io.Writer, schema Schema) *CSVWriter {
	return &CSVWriter{
		w:      csv.NewWriter(w),
		schema: schema,
		record: make([]string, len(schema.Columns())),
	}
}

func (c *CSVWriter) writeHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	return c.w.Write(c.schema.Columns())
}

// Write implements Sink.
func (c *CSVWriter) Write(r Row) error {
	if err := c.schema.Check(r); err != nil {
		return err
	}
	if err := c.writeHeader(); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := c.record[:0]
	rec = append(rec, strconv.Itoa(r.Index))
	for _, v := range r.Params {
		rec = append(rec, formatFloat(v))
	}
	for i := range c.schema.Observables {
		if r.OK() {
			rec = append(rec, formatFloat(r.Observables[i]))
		} else {
			rec = append(rec, "")
		}
	}
	rec = append(rec, string(r.Status), r.Reason)
	if err := c.w.Write(rec); err != nil {
		return fmt.Errorf("write csv row %d: %w", r.Index, err)
	}
	c.pending++
	if c.pending >= FlushEvery {
		c.pending = 0
		return c.Flush()
	}
	return nil
}

// Flush writes the header if needed and flushes buffered rows.
func (c *CSVWriter) Flush() error {
	if err := c.writeHeader(); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

type readOptions struct {
	requested int
}

type ReadOption func(*readOptions)

// Requested sets the sample count the export was produced for. A file
// with fewer rows then reads back as truncated.
func Requested(n int) ReadOption {
	return func(o *readOptions) { o.requested = n }
}

// ReadCSV rebuilds a finalized table from a CSV export. observableNames
// names the observable columns; when empty, every column after the
// parameters that is a known observable is treated as one. The reason
// column is optional.
//
// An export does not record how many samples were requested, so without
// Requested the row count is taken as the request and an export of a
// cancelled scan reads back as complete or partial.
func ReadCSV(r io.Reader, observableNames []string, opts ...ReadOption) (*Table, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read csv header")
	}
	header = slices.Clone(header)
	schema, hasReason, err := schemaFromHeader(header, observableNames)
	if err != nil {
		return nil, err
	}

	width := len(header)
	np, no := len(schema.Parameters), len(schema.Observables)
	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read csv")
		}
		if len(rec) != width {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "line %d: %d fields, header has %d", line, len(rec), width)
		}
		row, err := parseRecord(rec, np, no, hasReason)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("line %d", line))
		}
		if row.Index != len(rows) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "line %d: index %d out of order, expected %d", line, row.Index, len(rows))
		}
		rows = append(rows, row)
	}

	requested := len(rows)
	if o.requested > 0 {
		if o.requested < len(rows) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "export has %d rows, more than the %d requested", len(rows), o.requested)
		}
		requested = o.requested
	}
	table, err := NewTable(schema, requested)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := table.Write(row); err != nil {
			return nil, err
		}
	}
	table.Finalize(false)
	return table, nil
}

func schemaFromHeader(header, observableNames []string) (Schema, bool, error) {
	hasReason := len(header) > 0 && header[len(header)-1] == ColumnReason
	middle := header
	if hasReason {
		middle = middle[:len(middle)-1]
	}
	if len(middle) < 3 || middle[0] != ColumnIndex || middle[len(middle)-1] != ColumnStatus {
		return Schema{}, false, dErrors.Newf(dErrors.CodeInvalidInput, "csv header must start with %q and end with %q", ColumnIndex, ColumnStatus)
	}
	middle = middle[1 : len(middle)-1]

	split := len(middle)
	if len(observableNames) > 0 {
		split = len(middle) - len(observableNames)
		if split < 0 || !slices.Equal(middle[split:], observableNames) {
			return Schema{}, false, dErrors.Newf(dErrors.CodeInvalidInput, "csv header does not end with observables %v", observableNames)
		}
	} else {
		for i, name := range middle {
			if observables.Known(name) {
				split = i
				break
			}
		}
	}
	schema, err := NewSchema(middle[:split], middle[split:])
	return schema, hasReason, err
}

func parseRecord(rec []string, np, no int, hasReason bool) (Row, error) {
	idx, err := strconv.Atoi(rec[0])
	if err != nil {
		return Row{}, fmt.Errorf("index: %w", err)
	}
	status, err := ParseStatus(rec[1+np+no])
	if err != nil {
		return Row{}, err
	}
	row := Row{Index: idx, Status: status, Params: make([]float64, np)}
	if hasReason {
		row.Reason = rec[2+np+no]
	}
	for i := range np {
		if row.Params[i], err = strconv.ParseFloat(rec[1+i], 64); err != nil {
			return Row{}, fmt.Errorf("parameter column %d: %w", i, err)
		}
	}
	if status != StatusOK {
		return row, nil
	}
	row.Observables = make([]float64, no)
	for i := range no {
		cell := rec[1+np+i]
		if cell == "" {
			row.Observables[i] = math.NaN()
			continue
		}
		if row.Observables[i], err = strconv.ParseFloat(cell, 64); err != nil {
			return Row{}, fmt.Errorf("observable column %d: %w", i, err)
		}
	}
	return row, nil
}
