package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Topic carrying every fulfillment state change, keyed by order id so
// consumers see per-order events in order.
const TopicFulfillmentEvents = "fulfillment_events"

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{writer: w}
}

// Envelope wraps every published event with identity and timing so the
// dashboard consumers never have to inspect payload shapes.
type Envelope struct {
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	OrderID uint        `json:"order_id,omitempty"`
	ActorID uint        `json:"actor_id,omitempty"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload,omitempty"`
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	env, ok := event.(Envelope)
	if ok && env.EventID == "" {
		env.EventID = uuid.NewString()
		event = env
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
