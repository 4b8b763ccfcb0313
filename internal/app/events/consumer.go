package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/surajsatyarthi/antigravity-directory/internal/app/logger"
)

// Handler must return nil only when the event was handled and its offset
// may be committed.
type Handler func(ctx context.Context, env Envelope) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group string, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 256)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				if !handleMessage(ctx, m, h) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					logger.Logger.Err(err).Msg("event commit")
				}
			}
		}()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			close(jobs)
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}

// handleMessage reports whether the message's offset may be committed.
// Undecodable messages are skipped and committed so they cannot wedge the
// group; handler failures leave the offset uncommitted for redelivery and
// back off in place, never blocking the other workers.
func handleMessage(ctx context.Context, m kafka.Message, h Handler) bool {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		logger.Logger.Err(err).Msg("event decode, skipping")
		return true
	}
	if err := h(ctx, env); err != nil {
		logger.Logger.Err(err).Str("event", env.EventType).Msg("event handler")
		time.Sleep(200 * time.Millisecond)
		return false
	}
	return true
}
