// Package kafka builds franz-go clients and provisions topics.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"luftscan/internal/platform/config"
)

// New returns a producer client for the configured brokers, or nil when
// Kafka is not configured. Records with the same key keep their order.
func New(cfg config.Kafka, opts ...kgo.Opt) (*kgo.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	all := append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}, opts...)
	client, err := kgo.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the configured topic. An existing topic is fine.
func EnsureTopic(ctx context.Context, client *kgo.Client, cfg config.Kafka) error {
	adm := kadm.NewClient(client)
	partitions := cfg.Partitions
	if partitions < 1 {
		partitions = 1
	}
	replication := cfg.ReplicationFactor
	if replication < 1 {
		replication = 1
	}
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Health pings the brokers.
func Health(ctx context.Context, client *kgo.Client) error {
	return client.Ping(ctx)
}
