package events

import (
	"context"

	"courtbook/pkg/logger"
)

// LogPublisher only logs events; used when no broker is configured.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.log.Info("Domain event",
		"event_id", event.EventID,
		"type", event.Type,
		"booking_id", event.BookingID,
		"reference", event.Reference,
		"status", event.Status,
		"payment_status", event.PaymentStatus,
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
