// Package stream publishes scan rows to Kafka as JSON lines, one record per
// row, keyed by scan ID so a scan's rows stay ordered within a partition.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"luftscan/internal/results"
	"luftscan/pkg/domain"
	"luftscan/pkg/platform/sentinel"
)

// Header names carried on every record.
const (
	HeaderScanID      = "scan_id"
	HeaderParameters  = "parameters"
	HeaderObservables = "observables"
)

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher is a Kafka-backed scan.RowPublisher.
type Publisher struct {
	producer Producer
	topic    string
}

func NewPublisher(producer Producer, topic string) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	return &Publisher{producer: producer, topic: topic}, nil
}

// Publish produces rows synchronously and in order.
func (p *Publisher) Publish(ctx context.Context, id domain.ScanID, schema results.Schema, rows []results.Row) error {
	if len(rows) == 0 {
		return nil
	}
	key := []byte(id.String())
	headers := []kgo.RecordHeader{
		{Key: HeaderScanID, Value: key},
		{Key: HeaderParameters, Value: []byte(strings.Join(schema.Parameters, ","))},
		{Key: HeaderObservables, Value: []byte(strings.Join(schema.Observables, ","))},
	}
	records := make([]*kgo.Record, 0, len(rows))
	for _, row := range rows {
		value, err := results.AppendJSON(nil, schema, row)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", row.Index, err)
		}
		records = append(records, &kgo.Record{
			Topic:   p.topic,
			Key:     key,
			Value:   value,
			Headers: headers,
		})
	}
	if err := p.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce rows: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// Sink adapts the publisher to a results.Sink for store-less CLI scans.
// Rows are buffered and produced in groups of size.
func (p *Publisher) Sink(ctx context.Context, id domain.ScanID, schema results.Schema, size int) *Sink {
	if size < 1 {
		size = 1
	}
	return &Sink{ctx: ctx, id: id, schema: schema, pub: p, buf: make([]results.Row, 0, size)}
}

// Sink buffers rows for one scan. Call Flush after the last row.
type Sink struct {
	ctx    context.Context
	id     domain.ScanID
	schema results.Schema
	pub    *Publisher
	buf    []results.Row
}

func (s *Sink) Write(r results.Row) error {
	s.buf = append(s.buf, r)
	if len(s.buf) == cap(s.buf) {
		return s.Flush()
	}
	return nil
}

func (s *Sink) Flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	err := s.pub.Publish(s.ctx, s.id, s.schema, s.buf)
	s.buf = s.buf[:0]
	return err
}
