//go:build integration

package kafka

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"amlstat/internal/platform/config"
	audit "amlstat/pkg/platform/audit"
	"amlstat/pkg/testutil/containers"
)

func TestProducer_PublishesOutboxEntries(t *testing.T) {
	broker := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p, err := NewProducer(config.KafkaConfig{
		Brokers:    []string{broker.SeedBroker},
		AuditTopic: "amlstat.audit.test",
	}, slog.Default())
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.EnsureTopic(ctx, 1, 1))
	require.NoError(t, p.EnsureTopic(ctx, 1, 1), "topic creation must be idempotent")

	entry := audit.OutboxEntry{
		ID:            uuid.New(),
		AggregateType: "submission",
		AggregateID:   uuid.NewString(),
		EventType:     string(audit.EventSubmissionApproved),
		Payload:       []byte(`{"action":"submission_approved"}`),
		CreatedAt:     time.Now(),
	}
	require.NoError(t, p.Publish(ctx, []audit.OutboxEntry{entry}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.SeedBroker),
		kgo.ConsumeTopics("amlstat.audit.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, entry.AggregateID, string(records[0].Key))
	assert.JSONEq(t, string(entry.Payload), string(records[0].Value))
}
