package kafka

import (
	"context"
	"errors"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	fail   bool
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "pos.order.submitted", 16, zerolog.Nop())
	p.Start()

	p.Publish([]byte("1"), []byte(`{"a":1}`), EventHeaders("OrderSubmitted", 1)...)
	p.Publish([]byte("2"), []byte(`{"a":2}`))
	p.Close()
	p.Close() // second close is a no-op
	p.WaitClosed()

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "1", string(w.msgs[0].Key))
	assert.Equal(t, "x-event-type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "OrderSubmitted", string(w.msgs[0].Headers[0].Value))
	assert.True(t, w.closed)
}

func TestProducerPublishAfterCloseIsDropped(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "t", 4, zerolog.Nop())
	p.Start()
	p.Close()
	p.WaitClosed()

	assert.NotPanics(t, func() { p.Publish([]byte("k"), []byte("v")) })
	assert.Empty(t, w.msgs)
}

func TestProducerWriteErrorKeepsDraining(t *testing.T) {
	w := &fakeWriter{fail: true}
	p := NewProducerWithWriter(w, "t", 4, zerolog.Nop())
	p.Start()
	p.Publish([]byte("k"), []byte("v"))
	p.Close()
	p.WaitClosed()
	assert.True(t, w.closed)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     chan kafka.Message
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	q := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		q <- m
	}
	return &fakeReader{queue: q}
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) commits() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func runConsumer(c *Consumer, h Handler) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, h) }()
	return cancel, done
}

func TestConsumerRetriesFailedMessageBeforeLaterOnes(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 1, Value: []byte("flaky")},
		kafka.Message{Partition: 0, Offset: 2, Value: []byte("ok")},
	)
	c := NewConsumerWithReader(r, 2, zerolog.Nop())
	c.backoff = time.Millisecond

	var (
		mu      sync.Mutex
		handled []int64
		failed  bool
	)
	cancel, done := runConsumer(c, func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, m.Offset)
		if string(m.Value) == "flaky" && !failed {
			failed = true
			return errors.New("redis timeout")
		}
		return nil
	})

	assert.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2}, r.commits(), "offset 1 committed before 2, never skipped")
	mu.Lock()
	assert.Equal(t, []int64{1, 1, 2}, handled)
	mu.Unlock()
	assert.True(t, r.closed)
}

func TestConsumerStuckPartitionDoesNotCommitPastFailure(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 5, Value: []byte("bad")},
		kafka.Message{Partition: 0, Offset: 6, Value: []byte("ok")},
		kafka.Message{Partition: 1, Offset: 9, Value: []byte("ok")},
	)
	c := NewConsumerWithReader(r, 2, zerolog.Nop())
	c.backoff = time.Millisecond
	c.maxBackoff = 2 * time.Millisecond

	cancel, done := runConsumer(c, func(_ context.Context, m kafka.Message) error {
		if string(m.Value) == "bad" {
			return errors.New("db down")
		}
		return nil
	})

	// partition 1 keeps flowing on its own worker
	assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{9}, r.commits())
}

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID int64 `json:"order_id"`
	}
	got, err := UnwrapPayload[payload]([]byte(`{"order_id":7}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.OrderID)

	_, err = UnwrapPayload[payload]([]byte(`{`))
	assert.ErrorContains(t, err, "decode payload")
}
