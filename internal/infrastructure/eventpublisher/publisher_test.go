package eventpublisher

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/metrics"
)

func TestDispatchDeliversToEverySink(t *testing.T) {
	a := &stubSink{name: "a"}
	b := &stubSink{name: "b"}
	f, m := newTestFeed(a, b)

	f.dispatch(context.Background(), domain.ChangeEvent{Seq: 1, Type: domain.EventTypeTransferPosted})

	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FeedEvents.WithLabelValues("a")))
}

func TestDispatchContinuesOnSinkError(t *testing.T) {
	bad := &stubSink{name: "bad", failures: 100}
	good := &stubSink{name: "good"}
	f, m := newTestFeed(bad, good)

	f.dispatch(context.Background(), domain.ChangeEvent{Seq: 7})

	assert.Empty(t, bad.received())
	require.Len(t, good.received(), 1)
	assert.Equal(t, int64(7), good.received()[0].Seq)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FeedDropped.WithLabelValues("bad")))
	// one attempt plus the configured retries
	assert.Equal(t, 3, bad.attempts())
}

func TestDispatchRetriesTransientFailure(t *testing.T) {
	flaky := &stubSink{name: "flaky", failures: 1}
	f, _ := newTestFeed(flaky)

	f.dispatch(context.Background(), domain.ChangeEvent{Seq: 2})

	assert.Len(t, flaky.received(), 1)
	assert.Equal(t, 2, flaky.attempts())
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	f := NewFeed(Config{Logger: zerolog.Nop(), Metrics: m, BufferSize: 1})

	f.Publish(domain.ChangeEvent{Seq: 1})
	f.Publish(domain.ChangeEvent{Seq: 2})

	assert.Len(t, f.events, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FeedDropped.WithLabelValues("buffer")))
}

func TestStartDeliversInOrderAndStopsOnCancel(t *testing.T) {
	sink := &stubSink{name: "s"}
	f, _ := newTestFeed(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.Start(ctx)
	}()

	for i := int64(1); i <= 5; i++ {
		f.Publish(domain.ChangeEvent{Seq: i})
	}

	require.Eventually(t, func() bool { return len(sink.received()) == 5 }, time.Second, 5*time.Millisecond)
	for i, ev := range sink.received() {
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestLogSinkWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	err := sink.Publish(context.Background(), domain.ChangeEvent{
		Seq:         3,
		Type:        domain.EventTypeOrderSubmitted,
		AggregateID: "order-1",
		Collections: []domain.Collection{domain.CollectionOrders},
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"event_type":"order.submitted"`)
	assert.Contains(t, buf.String(), `"collections":["orders"]`)
	assert.Equal(t, "log", sink.Name())
}

func newTestFeed(sinks ...Sink) (*Feed, *metrics.Metrics) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	f := NewFeed(Config{
		Sinks:      sinks,
		Logger:     zerolog.Nop(),
		Metrics:    m,
		BufferSize: 16,
		MaxRetries: 2,
	})
	f.initialInterval = time.Millisecond
	f.maxInterval = 2 * time.Millisecond
	return f, m
}

type stubSink struct {
	name     string
	failures int

	mu     sync.Mutex
	calls  int
	events []domain.ChangeEvent
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Publish(_ context.Context, event domain.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubSink) received() []domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChangeEvent(nil), s.events...)
}

func (s *stubSink) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
