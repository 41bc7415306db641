package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vetclinic/pkg/requestcontext"
)

type PublisherSuite struct {
	suite.Suite
	metrics *Metrics
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.metrics = NewMetricsWithRegisterer(prometheus.NewRegistry())
}

func (s *PublisherSuite) TestEmitStampsEventFromContext() {
	p := NewPublisher(4, WithMetrics(s.metrics))
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "192.0.2.1", "curl/8.0")

	s.Require().NoError(p.Emit(ctx, Event{Action: ActionPersonCreated, PersonID: 7, Name: "Alex"}))

	got := <-p.Events()
	s.NotEqual(uuid.Nil, got.ID)
	s.Equal(now, got.Timestamp)
	s.Equal("req-1", got.RequestID)
	s.Equal("192.0.2.1", got.ClientIP)
	s.Equal(ActionPersonCreated, got.Action)
	s.Equal(int64(7), got.PersonID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Emitted))
}

func (s *PublisherSuite) TestEmitDropsWhenFull() {
	var logs bytes.Buffer
	p := NewPublisher(1,
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	ctx := context.Background()

	s.Require().NoError(p.Emit(ctx, Event{Action: ActionPersonCreated, PersonID: 1}))
	err := p.Emit(ctx, Event{Action: ActionPersonCreated, PersonID: 2})

	s.ErrorIs(err, ErrQueueFull)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Dropped.WithLabelValues(dropReasonQueueFull)))
	s.Contains(logs.String(), "audit queue full")
}

func (s *PublisherSuite) TestEmitAfterClose() {
	p := NewPublisher(2)
	s.Require().NoError(p.Emit(context.Background(), Event{Action: ActionPersonDeleted, PersonID: 3}))
	p.Close()
	p.Close()

	s.ErrorIs(p.Emit(context.Background(), Event{Action: ActionPersonDeleted}), ErrPublisherClosed)

	queued, ok := <-p.Events()
	s.True(ok, "events queued before close stay readable")
	s.Equal(int64(3), queued.PersonID)
	_, ok = <-p.Events()
	s.False(ok)
}

type flakySink struct {
	mu     sync.Mutex
	fail   bool
	events []Event
	calls  int
}

func (f *flakySink) Append(_ context.Context, e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("sink down")
	}
	f.events = append(f.events, e)
	return nil
}

func TestWorkerDrainsUntilClosed(t *testing.T) {
	store := NewInMemoryStore()
	p := NewPublisher(8)
	w := NewWorker(store, p.Events())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, p.Emit(ctx, Event{Action: ActionPersonUpdated, PersonID: i}))
	}
	cancel()
	p.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the publisher closed")
	}

	events, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 3)

	byPerson, err := store.ListByPerson(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, byPerson, 1)
	assert.Equal(t, ActionPersonUpdated, byPerson[0].Action)
}

func TestWorkerOpensBreakerOnSinkFailures(t *testing.T) {
	sink := &flakySink{fail: true}
	metrics := NewMetricsWithRegisterer(prometheus.NewRegistry())
	inbox := make(chan Event, 10)
	w := NewWorker(sink, inbox,
		WithCircuitBreaker(NewCircuitBreaker(2, time.Hour)),
		WithWorkerMetrics(metrics),
		WithWorkerLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)

	for i := range 5 {
		inbox <- Event{Action: ActionPersonCreated, PersonID: int64(i)}
	}
	close(inbox)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 2, sink.calls, "the breaker should stop calls after the threshold")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Dropped.WithLabelValues(dropReasonSinkFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Dropped.WithLabelValues(dropReasonCircuitOpen)))
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.False(t, cb.IsOpen())
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow(), "half-open after cooldown")
	cb.RecordFailure()
	assert.True(t, cb.IsOpen(), "one failure while half-open reopens")

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
}

type recordingProducer struct {
	topic      string
	key, value []byte
	err        error
}

func (r *recordingProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	r.topic, r.key, r.value = topic, key, value
	return r.err
}

func TestKafkaSinkAppend(t *testing.T) {
	producer := &recordingProducer{}
	sink := NewKafkaSink(producer, "person-audit")
	event := Event{ID: uuid.New(), Action: ActionPersonDeleted, PersonID: 9, RequestID: "req-9"}

	require.NoError(t, sink.Append(context.Background(), event))

	assert.Equal(t, "person-audit", producer.topic)
	assert.Equal(t, event.ID.String(), string(producer.key))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(producer.value, &decoded))
	assert.Equal(t, "person_deleted", decoded["action"])
	assert.EqualValues(t, 9, decoded["person_id"])
	assert.Equal(t, "req-9", decoded["request_id"])
}

func TestKafkaSinkPropagatesProducerError(t *testing.T) {
	boom := errors.New("broker unavailable")
	sink := NewKafkaSink(&recordingProducer{err: boom}, "person-audit")
	assert.ErrorIs(t, sink.Append(context.Background(), Event{ID: uuid.New()}), boom)
}
