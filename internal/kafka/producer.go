package kafka

import (
	"context"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"sync"
	"time"
)

// MessageWriter is the part of *kafka.Writer the producer drives.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes fire-and-forget from a buffered inbox drained by one
// goroutine. Publish never blocks the caller on the broker.
type Producer struct {
	w       MessageWriter
	topic   string
	log     zerolog.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

func NewProducer(brokers []string, topic string, buf int, log zerolog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return NewProducerWithWriter(w, topic, buf, log)
}

func NewProducerWithWriter(w MessageWriter, topic string, buf int, log zerolog.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		topic:   topic,
		log:     log.With().Str("topic", topic).Logger(),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the drain loop until Close. Messages still buffered at Close
// are flushed before the writer is closed.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				p.log.Error().Err(err).Bytes("key", m.Key).Msg("publish failed")
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn().Err(err).Msg("close writer")
		}
	}()
}

// Publish enqueues one message. It drops (and logs) when the inbox is full
// or the producer is closed.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn().Bytes("key", key).Msg("publish after close dropped")
		return
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
	default:
		p.log.Warn().Bytes("key", key).Msg("inbox full, message dropped")
	}
}

// Close stops accepting messages; the drain loop flushes what is left.
func (p *Producer) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the inbox is drained and the writer closed.
func (p *Producer) WaitClosed() { <-p.closeCh }
