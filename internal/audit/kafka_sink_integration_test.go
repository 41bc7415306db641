//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"vetclinic/internal/audit"
	"vetclinic/internal/platform/kafka"
	"vetclinic/pkg/testutil/containers"
)

func TestKafkaSinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	topic := "person-audit-" + uuid.NewString()

	producer, err := kafka.NewProducer(broker.Brokers)
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, producer.Ping(ctx))
	require.NoError(t, producer.EnsureTopic(ctx, topic, 1, 1))
	require.NoError(t, producer.EnsureTopic(ctx, topic, 1, 1), "existing topic is not an error")

	sink := audit.NewKafkaSink(producer, topic)
	event := audit.Event{ID: uuid.New(), Timestamp: time.Now().UTC(), Action: audit.ActionPersonCreated, PersonID: 42, Name: "Alex"}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, event.ID.String(), string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, event.PersonID, got.PersonID)
	require.Equal(t, event.Action, got.Action)
}
