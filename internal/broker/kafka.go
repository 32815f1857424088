package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Producer writes message events to kafka after a successful append.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        true, // fire-and-forget from the caller's side
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	for i := 0; i < 3; i++ {
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			log.Warn().Err(err).Msgf("kafka publish attempt %d failed", i+1)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to publish kafka message after retries")
}

// Close shuts down the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads message events. Each process uses its own group id so
// every instance observes every event and can serve its local sockets.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader}
}

// Run pushes raw event payloads into out until ctx is cancelled. Run
// is the only sender on out and closes it on exit, so downstream
// range loops terminate with it.
func (c *Consumer) Run(ctx context.Context, out chan<- []byte) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("kafka consumer stopping")
			return
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("kafka read error")
				time.Sleep(time.Second)
				continue
			}
			out <- msg.Value
		}
	}
}

// Close stops the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
