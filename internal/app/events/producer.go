package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
)

// Publisher is what the handlers see. A nil *Producer satisfies it by
// dropping events, so wiring Kafka stays optional per deployment.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

type Producer struct {
	w        *kafka.Writer
	producer string
	inbox    chan kafka.Message

	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

func NewProducer(brokers []string, topic string, producer string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		producer: producer,
		inbox:    make(chan kafka.Message, buf),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the writer goroutine until ctx is canceled or Close is
// called. The inbox channel is never closed, so a Publish racing either
// shutdown path cannot panic; at worst its event is dropped.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer func() {
			p.drain()
			_ = p.w.Close()
			close(p.done)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.closing:
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

// drain flushes events that were buffered before shutdown won the select.
func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		logger.Logger.Err(err).Msg("event publish")
	}
}

func (p *Producer) Publish(eventType string, payload interface{}) {
	if p == nil {
		return
	}
	select {
	case <-p.closing:
		logger.Logger.Warn().Str("event", eventType).Msg("producer closed, dropping event")
		return
	default:
	}

	env, err := Wrap(eventType, p.producer, payload)
	if err != nil {
		logger.Logger.Err(err).Str("event", eventType).Msg("event marshal")
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		logger.Logger.Err(err).Str("event", eventType).Msg("event marshal")
		return
	}

	m := kafka.Message{
		Key:   []byte(eventType),
		Value: value,
		Time:  time.Now(),
	}
	select {
	case p.inbox <- m:
	default:
		logger.Logger.Warn().Str("event", eventType).Msg("event inbox full, dropping")
	}
}

// Close flushes buffered events and stops the writer goroutine. It is
// idempotent and returns once the goroutine has exited.
func (p *Producer) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() { close(p.closing) })
	<-p.done
}
