package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is the durable notification record published for asynchronous
// delivery (the email leg is consumed by cmd/notifier).
type Event struct {
	RequestID string    `json:"request_id,omitempty"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	EmittedAt time.Time `json:"emitted_at"`
}

type EventProducer struct {
	writer *kafka.Writer
}

func NewEventProducer(brokers []string, topic string) *EventProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &EventProducer{writer: w}
}

func (p *EventProducer) Publish(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(e)
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.UserID), Value: b})
}

func (p *EventProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
