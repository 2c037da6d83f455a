package results

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// AppendJSON encodes r as one JSON object whose keys follow the schema's
// column order. Non-finite numbers and the observables of failed rows are
// written as null; an empty reason is omitted.
func AppendJSON(dst []byte, schema Schema, r Row) ([]byte, error) {
	if err := schema.Check(r); err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(dst)
	buf.WriteByte('{')
	writeKey(buf, ColumnIndex, true)
	buf.WriteString(strconv.Itoa(r.Index))
	for i, name := range schema.Parameters {
		writeKey(buf, name, false)
		writeNumber(buf, r.Params[i])
	}
	for i, name := range schema.Observables {
		writeKey(buf, name, false)
		if r.OK() {
			writeNumber(buf, r.Observables[i])
		} else {
			buf.WriteString("null")
		}
	}
	writeKey(buf, ColumnStatus, false)
	writeString(buf, string(r.Status))
	if r.Reason != "" {
		writeKey(buf, ColumnReason, false)
		writeString(buf, r.Reason)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s) // strings always marshal
	buf.Write(b)
}

func writeNumber(buf *bytes.Buffer, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		buf.WriteString("null")
		return
	}
	buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

// JSONLWriter exports one JSON object per line.
type JSONLWriter struct {
	w       *bufio.Writer
	schema  Schema
	scratch []byte
}

// NewJSONLWriter creates a writer for the given schema.
func NewJSONLWriter(w io.Writer, schema Schema) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w), schema: schema}
}

// Write implements Sink.
func (j *JSONLWriter) Write(r Row) error {
	line, err := AppendJSON(j.scratch[:0], j.schema, r)
	if err != nil {
		return err
	}
	j.scratch = append(line, '\n')
	if _, err := j.w.Write(j.scratch); err != nil {
		return fmt.Errorf("write jsonl row %d: %w", r.Index, err)
	}
	return nil
}

// Flush implements Flusher.
func (j *JSONLWriter) Flush() error { return j.w.Flush() }
