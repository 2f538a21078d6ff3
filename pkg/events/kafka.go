package events

import (
	"context"
	"fmt"

	"courtbook/pkg/kafka"
	"courtbook/pkg/middleware"
)

const source = "courtbook"

type messageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher keys every record by booking id so a booking's events stay ordered on one partition.
type KafkaPublisher struct {
	producer messageProducer
}

func NewKafkaPublisher(producer messageProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventID(event.EventID).
		WithEventType(string(event.Type)).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("build %s message: %w", event.Type, err)
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
