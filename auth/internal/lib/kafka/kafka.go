package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"nodove/auth/internal/domain/models"
	"nodove/auth/internal/lib/logger/sl"
)

// Producer publishes login history events to Kafka.
type Producer struct {
	log      *slog.Logger
	producer sarama.AsyncProducer
	topic    string
	done     chan struct{}

	// mu guards closed; Close must not race a send on the input channel.
	mu     sync.RWMutex
	closed bool
}

func NewKafkaProducer(log *slog.Logger, brokers []string, topic string) (*Producer, error) {
	const op = "kafka.NewKafkaProducer"

	config := sarama.NewConfig()
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 // ms

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithProducer(log, producer, topic), nil
}

// NewWithProducer wraps an existing producer and starts draining its error channel.
func NewWithProducer(log *slog.Logger, producer sarama.AsyncProducer, topic string) *Producer {
	p := &Producer{
		log:      log.With(slog.String("component", "kafka")),
		producer: producer,
		topic:    topic,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		for err := range producer.Errors() {
			p.log.Error("failed to deliver message", sl.Err(err))
		}
	}()

	return p
}

// RecordLogin enqueues a login event. It never blocks the caller: when the input
// queue is full the event is dropped and logged.
func (p *Producer) RecordLogin(_ context.Context, event models.LoginEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to encode login event", sl.Err(err))
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.Warn("login event dropped, producer is closed", slog.String("userId", event.UserID))
		return
	}

	select {
	case p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(message),
	}:
	default:
		p.log.Warn("login event dropped, producer queue is full", slog.String("userId", event.UserID))
	}
}

// Close flushes buffered messages and shuts the producer down. Events recorded
// afterwards are dropped. Calling Close twice is a no-op.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.producer.Close()
	<-p.done
	return err
}

// Nop discards login events. It is used when Kafka is disabled.
type Nop struct{}

func (Nop) RecordLogin(context.Context, models.LoginEvent) {}

func (Nop) Close() error { return nil }
