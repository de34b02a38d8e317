package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Ticket-Allocation-System/pkg/logging"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

type fakeStore struct {
	mu       sync.Mutex
	pending  []Event
	sent     []int64
	failed   map[int64]string
	retried  map[int64]int
	extended int
}

func (s *fakeStore) LockBatch(_ context.Context, _ string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(batchSize, len(s.pending))
	batch := s.pending[:n]
	s.pending = s.pending[n:]
	return batch, nil
}

func (s *fakeStore) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = errMsg
	return nil
}

func (s *fakeStore) MarkRetry(_ context.Context, id int64, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retried == nil {
		s.retried = map[int64]int{}
	}
	s.retried[id]++
	s.pending = append(s.pending, Event{ID: id, AggregateID: fmt.Sprint(id), Type: "OrderFulfilled", RetryCount: s.retried[id]})
	return nil
}

func (s *fakeStore) ExtendLease(context.Context, string, []int64, time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extended++
	return nil
}

type fakeProducer struct {
	msgs     []kafka.Message
	failOn   string
	failures int
	err      error
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn && p.failures != 0 {
			p.failures--
			if p.err != nil {
				return p.err
			}
			return errors.New("broker unavailable")
		}
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func newEvent(id int64) Event {
	ev := New("order", fmt.Sprint(id), "OrderFulfilled", []byte(`{}`), map[string]string{"source": "test"}, "")
	ev.ID = id
	return ev
}

func TestRelayFlushDispatchesAndMarks(t *testing.T) {
	store := &fakeStore{}
	for i := int64(1); i <= 3; i++ {
		store.pending = append(store.pending, newEvent(i))
	}
	store.pending[1].Traceparent = traceparent

	producer := &fakeProducer{failOn: "3", failures: 1}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "order.events"), "relay-1")

	sent, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, store.sent)
	assert.Empty(t, store.failed)
	assert.Equal(t, 1, store.retried[3])

	require.Len(t, producer.msgs, 2)
	msg := producer.msgs[1]
	assert.Equal(t, "order.events", msg.Topic)
	assert.Equal(t, "2", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "OrderFulfilled", headers["event_type"])
	assert.Equal(t, traceparent, headers["traceparent"])
	assert.Equal(t, "test", headers["source"])
	assert.Equal(t, "2", headers["event_id"])
	assert.Equal(t, "order", headers["aggregate_type"])
}

func TestRelayRedeliversAfterTransientFailure(t *testing.T) {
	store := &fakeStore{pending: []Event{newEvent(7)}}
	producer := &fakeProducer{failOn: "7", failures: 1}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "order.events"), "relay-1")

	sent, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	sent, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{7}, store.sent)
	assert.Empty(t, store.failed)
	require.Len(t, producer.msgs, 1)
}

func TestRelayParksPermanentFailures(t *testing.T) {
	store := &fakeStore{pending: []Event{newEvent(4)}}
	producer := &fakeProducer{failOn: "4", failures: -1, err: kafka.MessageSizeTooLarge}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "order.events"), "relay-1")

	_, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Contains(t, store.failed, int64(4))
	assert.Zero(t, store.retried[4])
	assert.Empty(t, store.pending)
}

func TestRelayParksAfterMaxAttempts(t *testing.T) {
	store := &fakeStore{pending: []Event{newEvent(5)}}
	producer := &fakeProducer{failOn: "5", failures: -1}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "order.events"), "relay-1")
	relay.attempts = 3

	for range 5 {
		_, err := relay.Flush(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.retried[5])
	assert.Contains(t, store.failed, int64(5))
	assert.Empty(t, producer.msgs)
}

func TestPermanentClassification(t *testing.T) {
	assert.True(t, permanent(kafka.MessageSizeTooLarge))
	assert.True(t, permanent(kafka.WriteErrors{kafka.InvalidMessage}))
	assert.False(t, permanent(kafka.WriteErrors{kafka.InvalidMessage, kafka.LeaderNotAvailable}))
	assert.False(t, permanent(errors.New("i/o timeout")))
}

func TestRelayFlushEmpty(t *testing.T) {
	relay := NewRelay(logging.Discard(), &fakeStore{}, NewDispatcher(logging.Discard(), &fakeProducer{}, "t"), "relay-1")
	sent, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	relay := NewRelay(logging.Discard(), &fakeStore{}, NewDispatcher(logging.Discard(), &fakeProducer{}, "t"), "relay-1")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
