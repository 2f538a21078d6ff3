package service

import (
	"context"
	"testing"
	"time"

	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/events"
	"courtbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Tuesday 10:00.
var rescheduleStart = testNow.Add(26 * time.Hour)

func moveTo(start time.Time, d time.Duration) *model.RescheduleBookingRequest {
	return &model.RescheduleBookingRequest{StartTime: start, EndTime: start.Add(d)}
}

func TestReschedule(t *testing.T) {
	tests := []struct {
		name          string
		status        model.BookingStatus
		paymentStatus model.PaymentStatus
		req           *model.RescheduleBookingRequest
		wantTotal     model.Money
	}{
		{
			name:          "later the same day",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(4*time.Hour), time.Hour),
			wantTotal:     10000,
		},
		{
			name:          "into time it already holds",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(30*time.Minute), time.Hour),
			wantTotal:     10000,
		},
		{
			name:          "unpaid booking changes price",
			status:        model.BookingPending,
			paymentStatus: model.PaymentPending,
			req:           moveTo(rescheduleStart, 2*time.Hour),
			wantTotal:     20000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.seed(tt.status, tt.paymentStatus, rescheduleStart)

			var excluded []string
			f.bookings.findOverlappingFunc = func(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
				excluded = append(excluded, excludeID)
				return f.bookings.overlapping(courtID, start, end, excludeID), nil
			}

			got, err := f.svc.Reschedule(context.Background(), b.ID, b.Version, tt.req, "user-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.StartTime.Equal(tt.req.StartTime) || !got.EndTime.Equal(tt.req.EndTime) {
				t.Errorf("booking at %v-%v, want %v-%v", got.StartTime, got.EndTime, tt.req.StartTime, tt.req.EndTime)
			}
			wantMinutes := int(tt.req.EndTime.Sub(tt.req.StartTime).Minutes())
			if got.DurationMinutes != wantMinutes || got.Pricing.Total != tt.wantTotal {
				t.Errorf("duration/total = %d/%d, want %d/%d", got.DurationMinutes, got.Pricing.Total, wantMinutes, tt.wantTotal)
			}
			if got.Version != b.Version+1 || got.Status != tt.status || got.UpdatedBy != "user-1" {
				t.Errorf("unexpected booking %s v%d by %q", got.Status, got.Version, got.UpdatedBy)
			}
			if len(excluded) < 2 {
				t.Fatalf("expected the check and the in-transaction re-check, got %d lookups", len(excluded))
			}
			for _, id := range excluded {
				if id != b.ID {
					t.Errorf("overlap lookup excluded %q, want %q", id, b.ID)
				}
			}
			if p := f.payments.get(b.Payment.PaymentID); p.Amount.Final != tt.wantTotal {
				t.Errorf("payment amount = %d, want %d", p.Amount.Final, tt.wantTotal)
			}
			if f.locks.acquired != 1 || f.locks.released != 1 {
				t.Errorf("lock acquired %d released %d", f.locks.acquired, f.locks.released)
			}
			assertEvents(t, f.publisher, events.BookingRescheduled)
		})
	}
}

func TestReschedule_Rejected(t *testing.T) {
	tests := []struct {
		name          string
		status        model.BookingStatus
		paymentStatus model.PaymentStatus
		req           *model.RescheduleBookingRequest
		version       func(b *model.Booking) int64
		setup         func(f *fixture)
		now           time.Time
		wantCode      string
	}{
		{
			name:          "paid booking would change price",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart, 2*time.Hour),
			wantCode:      apperrors.CodeConflict,
		},
		{
			name:          "payment in flight would change price",
			status:        model.BookingPending,
			paymentStatus: model.PaymentProcessing,
			req:           moveTo(rescheduleStart, 90*time.Minute),
			wantCode:      apperrors.CodeConflict,
		},
		{
			name:          "overlaps another booking",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(2*time.Hour), time.Hour),
			setup: func(f *fixture) {
				f.bookings.put(&model.Booking{
					ID:        primitive.NewObjectID().Hex(),
					Reference: "TRK-OTHER",
					CourtID:   testCourtID,
					StartTime: rescheduleStart.Add(150 * time.Minute),
					EndTime:   rescheduleStart.Add(210 * time.Minute),
					Status:    model.BookingConfirmed,
					Version:   1,
				})
			},
			wantCode: apperrors.CodeConflict,
		},
		{
			name:          "outside operating hours",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(12*time.Hour), time.Hour),
			wantCode:      apperrors.CodeValidation,
		},
		{
			name:          "end before start",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           &model.RescheduleBookingRequest{StartTime: rescheduleStart, EndTime: rescheduleStart.Add(-time.Hour)},
			wantCode:      apperrors.CodeValidation,
		},
		{
			name:          "stale version",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(time.Hour), time.Hour),
			version:       func(b *model.Booking) int64 { return b.Version - 1 },
			wantCode:      apperrors.CodeConcurrentModification,
		},
		{
			name:          "checked in",
			status:        model.BookingCheckedIn,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(time.Hour), time.Hour),
			wantCode:      apperrors.CodeConflict,
		},
		{
			name:          "cancelled",
			status:        model.BookingCancelled,
			paymentStatus: model.PaymentRefunded,
			req:           moveTo(rescheduleStart.Add(time.Hour), time.Hour),
			wantCode:      apperrors.CodeConflict,
		},
		{
			name:          "already started",
			status:        model.BookingConfirmed,
			paymentStatus: model.PaymentCompleted,
			req:           moveTo(rescheduleStart.Add(time.Hour), time.Hour),
			now:           rescheduleStart.Add(time.Minute),
			wantCode:      apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.seed(tt.status, tt.paymentStatus, rescheduleStart)
			if tt.setup != nil {
				tt.setup(f)
			}
			if !tt.now.IsZero() {
				f.setNow(tt.now)
			}
			version := b.Version
			if tt.version != nil {
				version = tt.version(b)
			}

			_, err := f.svc.Reschedule(context.Background(), b.ID, version, tt.req, "user-1")
			assertCode(t, err, tt.wantCode)

			stored := f.bookings.get(b.ID)
			if !stored.StartTime.Equal(rescheduleStart) || stored.Version != b.Version {
				t.Errorf("stored booking changed: %v v%d", stored.StartTime, stored.Version)
			}
			if p := f.payments.get(b.Payment.PaymentID); p.Amount.Final != 10000 {
				t.Errorf("payment amount changed to %d", p.Amount.Final)
			}
			assertEvents(t, f.publisher)
		})
	}
}

func TestReschedule_SameTimesIsNoop(t *testing.T) {
	f := newFixture(t)
	b := f.seed(model.BookingConfirmed, model.PaymentCompleted, rescheduleStart)

	got, err := f.svc.Reschedule(context.Background(), b.ID, 0, moveTo(rescheduleStart, time.Hour), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != b.Version {
		t.Errorf("version = %d, want %d", got.Version, b.Version)
	}
	if f.locks.acquired != 0 {
		t.Error("an unchanged interval must not take the court lock")
	}
	assertEvents(t, f.publisher)
}
