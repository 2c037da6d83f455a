//go:build integration

package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"luftscan/internal/platform/config"
	"luftscan/internal/platform/kafka"
	"luftscan/internal/scan/stream"
	"luftscan/pkg/domain"
	"luftscan/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	cfg      config.Kafka
	producer *kgo.Client
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	broker := containers.GetManager().GetRedpanda(s.T())
	s.cfg = config.Kafka{Brokers: broker.Brokers, Topic: "luftscan.rows.it", Partitions: 1, ReplicationFactor: 1}

	producer, err := kafka.New(s.cfg)
	s.Require().NoError(err)
	s.producer = producer

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(kafka.EnsureTopic(ctx, producer, s.cfg))
}

func (s *PublisherSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *PublisherSuite) TestRowsArriveInOrder() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := stream.NewPublisher(s.producer, s.cfg.Topic)
	s.Require().NoError(err)
	id := domain.NewScanID()
	s.Require().NoError(pub.Publish(ctx, id, schema, rows(25)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []*kgo.Record
	for len(got) < 25 {
		fetches := consumer.PollFetches(ctx)
		s.Require().Empty(fetches.Errors())
		fetches.EachRecord(func(r *kgo.Record) {
			if string(r.Key) == id.String() {
				got = append(got, r)
			}
		})
	}
	s.Len(got, 25)
	s.Contains(string(got[0].Value), `"index":0`)
	s.Contains(string(got[24].Value), `"index":24`)
}
