// Package events publishes booking domain events to Kafka, RabbitMQ or the log.
package events

import (
	"context"
	"time"

	"courtbook/pkg/model"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated     Type = "booking.created"
	BookingConfirmed   Type = "booking.confirmed"
	BookingCancelled   Type = "booking.cancelled"
	BookingCompleted   Type = "booking.completed"
	BookingCheckedIn   Type = "booking.checked_in"
	BookingNoShow      Type = "booking.no_show"
	BookingRescheduled Type = "booking.rescheduled"
	PaymentUpdated     Type = "payment.updated"
)

const SchemaVersion = "1"

type Event struct {
	EventID       string              `json:"event_id"`
	Type          Type                `json:"type"`
	BookingID     string              `json:"booking_id"`
	Reference     string              `json:"reference"`
	PaymentID     string              `json:"payment_id,omitempty"`
	Status        model.BookingStatus `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Publisher delivers a domain event. Callers treat a failure as log-worthy only.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ForBooking snapshots the booking's current state into an event of type t.
func ForBooking(t Type, booking *model.Booking, at time.Time) Event {
	return Event{
		EventID:       uuid.NewString(),
		Type:          t,
		BookingID:     booking.ID,
		Reference:     booking.Reference,
		PaymentID:     booking.Payment.PaymentID,
		Status:        booking.Status,
		PaymentStatus: booking.Payment.Status,
		OccurredAt:    at.UTC(),
	}
}
