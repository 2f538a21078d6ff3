package service

import (
	"context"
	"fmt"

	"courtbook/internal/bookings/availability"
	"courtbook/internal/bookings/pricing"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/events"
	"courtbook/pkg/model"
	"courtbook/pkg/telemetry"
)

// Reschedule moves a pending or confirmed booking to a new interval on the same court. The
// slot is checked under the court lock with the booking itself excluded, so a booking may
// move into time it already holds. The price is recomputed; a payment that is already paid
// or in flight at the gateway cannot change amount, so such a move must cost the same.
func (s *bookingService) Reschedule(ctx context.Context, id string, expectedVersion int64, req *model.RescheduleBookingRequest, actor string) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Reschedule", telemetry.BookingAttrs(id, ""))
	defer func() { telemetry.End(span, err) }()

	req.StartTime = req.StartTime.UTC()
	req.EndTime = req.EndTime.UTC()
	if err = s.validator.ValidateReschedule(req); err != nil {
		return nil, validationError("Invalid reschedule request", err)
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return nil, apperrors.ConcurrentModification("Booking", id).
			WithDetail("expected_version", expectedVersion).
			WithDetail("current_version", current.Version)
	}
	if current.Status != model.BookingPending && current.Status != model.BookingConfirmed {
		return nil, apperrors.Conflict(fmt.Sprintf("A %s booking cannot be rescheduled", current.Status)).
			WithDetail("status", current.Status)
	}
	now := s.nowFn().UTC()
	if !now.Before(current.StartTime) {
		return nil, apperrors.Conflict("Booking has already started")
	}
	if current.StartTime.Equal(req.StartTime) && current.EndTime.Equal(req.EndTime) {
		return current, nil
	}

	court, err := s.loadCourt(ctx, current.CourtID)
	if err != nil {
		return nil, err
	}

	release, err := s.lockCourt(ctx, court.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err = s.checker.Check(ctx, court, req.StartTime, req.EndTime, current.ID); err != nil {
		return nil, s.availabilityError(err, court.ID)
	}

	payment, err := s.loadPayment(ctx, current)
	if err != nil {
		return nil, err
	}
	membership, err := s.memberships.FindActiveByUser(ctx, current.UserID, now)
	if err != nil {
		s.cfg.Log.Error("Failed to load membership", "user_id", current.UserID, "error", err)
		return nil, apperrors.Internal("Failed to load membership", err)
	}
	breakdown, err := s.calculator.Price(pricing.Quote{
		Court:      court,
		Start:      req.StartTime,
		End:        req.EndTime,
		Membership: membership,
		Equipment:  current.Equipment,
		At:         now,
	})
	if err != nil {
		return nil, s.pricingError(err, court.ID)
	}

	var paymentPatch *model.PaymentPatch
	if breakdown.Total != payment.Amount.Final {
		if payment.Status != model.PaymentPending {
			return nil, apperrors.Conflict("Rescheduling would change the price of a booking that is paid or being paid").
				WithDetail("payment_status", payment.Status).
				WithDetail("current_total", payment.Amount.Final).
				WithDetail("new_total", breakdown.Total)
		}
		amount := model.PaymentAmount{
			Original: breakdown.Subtotal,
			Final:    breakdown.Total,
			Currency: breakdown.Currency,
		}
		paymentPatch = &model.PaymentPatch{Amount: &amount}
	}

	duration := int(req.EndTime.Sub(req.StartTime).Minutes())
	bookingPatch := model.BookingPatch{
		StartTime:       &req.StartTime,
		EndTime:         &req.EndTime,
		DurationMinutes: &duration,
		Pricing:         breakdown,
		UpdatedBy:       actor,
	}

	var updated *model.Booking
	err = s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.bookings.FindOverlapping(txCtx, court.ID, req.StartTime, req.EndTime, current.ID)
		if err != nil {
			return apperrors.Internal("Failed to re-check availability", err)
		}
		if conflicts := availability.Conflicts(existing, req.StartTime, req.EndTime, current.ID); len(conflicts) > 0 {
			return apperrors.Conflict("the requested time overlaps an existing booking").
				WithDetail("reason", availability.SlotConflict).
				WithDetail("conflicts", conflicts)
		}
		if paymentPatch != nil {
			if _, err := s.payments.UpdateWithVersionCheck(txCtx, payment.ID, payment.Version, *paymentPatch); err != nil {
				return paymentUpdateError(err, payment.ID)
			}
		}
		b, err := s.bookings.UpdateWithVersionCheck(txCtx, current.ID, current.Version, bookingPatch)
		if err != nil {
			return bookingUpdateError(err, current.ID)
		}
		updated = b
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reschedule booking", "booking_id", current.ID, "error", err)
		return nil, txError(err, "Failed to reschedule booking")
	}

	s.cfg.Log.Info("Booking rescheduled",
		"booking_id", updated.ID,
		"reference", updated.Reference,
		"from", current.StartTime,
		"to", updated.StartTime,
		"total", updated.Pricing.Total,
		"actor", actor,
	)
	s.publish(ctx, events.BookingRescheduled, updated)
	return updated, nil
}
