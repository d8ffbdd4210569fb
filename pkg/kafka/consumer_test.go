package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coworking/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		if calls < 3 {
			return NewTransientError("order store", errors.New("unavailable"))
		}
		return nil
	}
	dlq := &fakeWriter{}
	c := newConsumer(nil, dlq, "orders.events", "group", handler, logger.Discard())
	c.maxRetries = 3

	err := c.processMessage(context.Background(), Message{Key: "1001", Headers: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Empty(t, dlq.written)
}

func TestConsumer_PermanentFailureIsDeadLettered(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return NewPermanentError("validation", errors.New("order_id is required"))
	}
	dlq := &fakeWriter{}
	c := newConsumer(nil, dlq, "orders.events", "group", handler, logger.Discard())
	c.maxRetries = 3

	err := c.processMessage(context.Background(), Message{Key: "1001", Value: []byte("{}"), Headers: map[string]string{"event-id": "e-1"}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, dlq.written, 1)
	dead := dlq.written[0]
	assert.Equal(t, "orders.events", header(dead, HeaderOriginalTopic))
	assert.Equal(t, "group", header(dead, HeaderDLQGroup))
	assert.Equal(t, "e-1", header(dead, HeaderEventID))
	assert.Contains(t, header(dead, HeaderDLQError), "order_id is required")
}

func TestConsumer_ExhaustedRetriesAreDeadLettered(t *testing.T) {
	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		return NewTransientError("timeout", nil)
	}
	dlq := &fakeWriter{}
	c := newConsumer(nil, dlq, "orders.events", "group", handler, logger.Discard())
	c.maxRetries = 2

	err := c.processMessage(context.Background(), Message{Key: "1001", Headers: map[string]string{}})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, dlq.written, 1)
	assert.Equal(t, "2", header(dlq.written[0], HeaderRetryCount))
}

func TestConsumer_MiddlewareOrder(t *testing.T) {
	var order []string
	handler := func(ctx context.Context, msg Message) error {
		order = append(order, "handler")
		return nil
	}
	c := newConsumer(nil, nil, "t", "g", handler, logger.Discard())
	for _, name := range []string{"outer", "inner"} {
		c.Use(func(ctx context.Context, msg Message, next MessageHandler) error {
			order = append(order, name)
			return next(ctx, msg)
		})
	}

	require.NoError(t, c.processMessage(context.Background(), Message{Headers: map[string]string{}}))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestConsumer_StartCommitsEveryMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		queue: []kafka.Message{
			{Key: []byte("ok"), Offset: 1},
			{Key: []byte("bad"), Offset: 2},
		},
		cancel: cancel,
	}
	var seen []string
	handler := func(ctx context.Context, msg Message) error {
		seen = append(seen, msg.Key)
		if msg.Key == "bad" {
			return NewPermanentError("bad", nil)
		}
		return nil
	}
	c := newConsumer(reader, &fakeWriter{}, "orders.events", "group", handler, logger.Discard())

	err := c.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"ok", "bad"}, seen)
	assert.Len(t, reader.committed, 2)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), ErrConsumerClosed)
}

func TestProducer_PublishAndDeadLetter(t *testing.T) {
	writer := &fakeWriter{}
	dlq := &fakeWriter{}
	p := newProducer(writer, dlq, "bookings.events", logger.Discard())

	msg, err := NewMessage().WithKey("desks").WithValue(map[string]int{"n": 1}).Build()
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), msg))
	require.Len(t, writer.written, 1)
	assert.Equal(t, "desks", string(writer.written[0].Key))

	writer.writeErr = errors.New("broker down")
	err = p.Publish(context.Background(), msg)
	require.Error(t, err)
	require.Len(t, dlq.written, 1)
	assert.Equal(t, "bookings.events", header(dlq.written[0], HeaderOriginalTopic))
	assert.Empty(t, msg.Headers[HeaderOriginalTopic])

	assert.ErrorIs(t, p.Publish(context.Background(), Message{Value: []byte("x")}), ErrEmptyKey)
	assert.ErrorIs(t, p.Publish(context.Background(), Message{Key: "k"}), ErrEmptyValue)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
	assert.True(t, dlq.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), msg), ErrProducerClosed)
}
