package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"courtbook/pkg/kafka"
	"courtbook/pkg/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

type mockProducer struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
	closed      bool
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	return m.publishFunc(ctx, msg)
}

func (m *mockProducer) Close() error {
	m.closed = true
	return nil
}

type mockChannel struct {
	publishFunc func(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.publishFunc(ctx, exchange, key, msg)
}

func (m *mockChannel) Close() error {
	return nil
}

func testBooking() *model.Booking {
	return &model.Booking{
		ID:        "65f000000000000000000001",
		Reference: "TRK-ABC-1234",
		Status:    model.BookingConfirmed,
		Payment: model.PaymentSummary{
			PaymentID: "65f000000000000000000002",
			Status:    model.PaymentCompleted,
		},
	}
}

func TestForBooking(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))
	ev := ForBooking(BookingConfirmed, testBooking(), at)

	if ev.EventID == "" {
		t.Error("expected generated event id")
	}
	if ev.Type != BookingConfirmed || ev.BookingID != "65f000000000000000000001" || ev.Reference != "TRK-ABC-1234" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.PaymentStatus != model.PaymentCompleted || ev.PaymentID != "65f000000000000000000002" {
		t.Errorf("payment fields not copied: %+v", ev)
	}
	if ev.OccurredAt.Location() != time.UTC {
		t.Error("occurred_at should be UTC")
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	var got kafka.Message
	producer := &mockProducer{publishFunc: func(ctx context.Context, msg kafka.Message) error {
		got = msg
		return nil
	}}
	pub := NewKafkaPublisher(producer)
	ev := ForBooking(BookingCreated, testBooking(), time.Now())

	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got.Key != ev.BookingID {
		t.Errorf("key = %q, want booking id", got.Key)
	}
	if got.GetEventID() != ev.EventID {
		t.Errorf("event-id header = %q, want %q", got.GetEventID(), ev.EventID)
	}
	if got.GetEventType() != string(BookingCreated) {
		t.Errorf("event-type header = %q", got.GetEventType())
	}

	var decoded Event
	if err := json.Unmarshal(got.Value, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Reference != ev.Reference || decoded.Status != model.BookingConfirmed {
		t.Errorf("decoded payload = %+v", decoded)
	}

	if err := pub.Close(); err != nil || !producer.closed {
		t.Error("Close() should close the producer")
	}
}

func TestKafkaPublisher_PropagatesError(t *testing.T) {
	wantErr := errors.New("broker down")
	pub := NewKafkaPublisher(&mockProducer{publishFunc: func(ctx context.Context, msg kafka.Message) error {
		return wantErr
	}})

	err := pub.Publish(context.Background(), ForBooking(BookingCancelled, testBooking(), time.Now()))
	if !errors.Is(err, wantErr) {
		t.Errorf("Publish() error = %v, want %v", err, wantErr)
	}
}

func TestRabbitPublisher_RoutesByType(t *testing.T) {
	var gotExchange, gotKey string
	var gotMsg amqp.Publishing
	pub := &RabbitPublisher{
		exchange: "booking.events",
		ch: &mockChannel{publishFunc: func(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
			gotExchange, gotKey, gotMsg = exchange, key, msg
			return nil
		}},
	}

	ev := ForBooking(PaymentUpdated, testBooking(), time.Now())
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if gotExchange != "booking.events" || gotKey != "payment.updated" {
		t.Errorf("published to %s/%s", gotExchange, gotKey)
	}
	if gotMsg.ContentType != "application/json" || gotMsg.MessageId != ev.EventID {
		t.Errorf("unexpected publishing %+v", gotMsg)
	}
	if gotMsg.DeliveryMode != amqp.Persistent {
		t.Error("events should be persistent")
	}
}
