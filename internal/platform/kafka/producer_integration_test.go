//go:build integration

package kafka_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"casedocs/internal/jobs"
	"casedocs/internal/platform/config"
	"casedocs/internal/platform/kafka"
	"casedocs/pkg/testutil/containers"
)

func TestProducerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.KafkaConfig{Brokers: rp.Brokers, Topic: "casedocs.jobs.test", Partitions: 1, ReplicationFactor: 1}
	p, err := kafka.NewProducer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer p.Close(ctx)

	require.NoError(t, p.EnsureTopic(ctx))
	require.NoError(t, p.EnsureTopic(ctx), "second call sees an existing topic")

	pub := jobs.NewBrokerPublisher(p)
	require.NoError(t, pub.PublishJobEvent(ctx, jobs.Event{Type: jobs.EventCompleted, JobID: "job-1", CaseID: "case-1"}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.NotEmpty(t, records)
	require.Equal(t, "job-1", string(records[0].Key))
	require.Contains(t, string(records[0].Value), `"job.completed"`)
}
