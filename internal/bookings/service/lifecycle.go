package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/bookings/pricing"
	courtserrors "courtbook/internal/courts/errors"
	"courtbook/internal/payments/gateway"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/events"
	"courtbook/pkg/model"
	"courtbook/pkg/telemetry"
)

const (
	reasonPaymentFailed = "payment failed"

	refundStatusManual    = "manual"
	refundStatusFailed    = "failed"
	refundStatusSubmitted = "submitted"
)

func (s *bookingService) ConfirmPayment(ctx context.Context, ref string, result model.GatewayResult) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings.ConfirmPayment")
	defer func() { telemetry.End(span, err) }()

	if err = s.validator.ValidateGatewayResult(&result); err != nil {
		return nil, validationError("Invalid payment result", err)
	}

	booking, err = s.GetByReference(ctx, ref)
	if err != nil {
		return nil, err
	}
	payment, err := s.loadPayment(ctx, booking)
	if err != nil {
		return nil, err
	}

	if payment.Gateway.TransactionID == result.TransactionID && payment.Status.IsSettled() {
		s.cfg.Log.Info("Payment result already applied",
			"booking_id", booking.ID,
			"transaction_id", result.TransactionID,
		)
		return booking, nil
	}

	if booking.Status != model.BookingPending {
		s.cfg.Log.Warn("Ignoring payment result for a booking that is no longer pending",
			"booking_id", booking.ID,
			"reference", booking.Reference,
			"status", booking.Status,
			"transaction_id", result.TransactionID,
			"success", result.Success,
		)
		return booking, nil
	}

	if result.Success && result.Amount != 0 && !gateway.AmountsMatch(result.Amount, payment.Amount.Final, payment.Amount.Currency) {
		s.cfg.Log.Error("Payment amount does not match booking total",
			"booking_id", booking.ID,
			"transaction_id", result.TransactionID,
			"expected", payment.Amount.Final,
			"received", result.Amount,
		)
		return nil, apperrors.Validation("Payment amount does not match booking total", map[string]any{
			"expected": payment.Amount.Final,
			"received": result.Amount,
		})
	}

	booking, _, err = s.applyResult(ctx, booking, payment, result, ActorSystem)
	return booking, err
}

// applyResult moves a pending booking and its payment to their settled states in one transaction.
func (s *bookingService) applyResult(ctx context.Context, booking *model.Booking, payment *model.Payment, result model.GatewayResult, actor string) (*model.Booking, *model.Payment, error) {
	now := s.nowFn().UTC()

	gatewayDetails := payment.Gateway
	gatewayDetails.TransactionID = result.TransactionID
	paymentPatch := model.PaymentPatch{Gateway: &gatewayDetails}
	bookingPatch := model.BookingPatch{UpdatedBy: actor}
	summary := booking.Payment
	summary.TransactionID = result.TransactionID

	var paymentStatus model.PaymentStatus
	var bookingStatus model.BookingStatus
	var eventType events.Type
	if result.Success {
		paymentStatus = model.PaymentCompleted
		bookingStatus = model.BookingConfirmed
		paymentPatch.CompletedAt = &now
		bookingPatch.ConfirmedAt = &now
		eventType = events.BookingConfirmed
	} else {
		paymentStatus = model.PaymentFailed
		bookingStatus = model.BookingCancelled
		gatewayDetails.FailureReason = result.FailureReason
		paymentPatch.FailedAt = &now
		bookingPatch.CancelledAt = &now
		bookingPatch.Cancellation = &model.Cancellation{
			Reason:      reasonPaymentFailed,
			CancelledBy: actor,
		}
		eventType = events.BookingCancelled
	}
	paymentPatch.Status = &paymentStatus
	bookingPatch.Status = &bookingStatus
	summary.Status = paymentStatus
	bookingPatch.Payment = &summary

	var updatedBooking *model.Booking
	var updatedPayment *model.Payment
	err := s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.payments.UpdateWithVersionCheck(txCtx, payment.ID, payment.Version, paymentPatch)
		if err != nil {
			return paymentUpdateError(err, payment.ID)
		}
		b, err := s.bookings.UpdateWithVersionCheck(txCtx, booking.ID, booking.Version, bookingPatch)
		if err != nil {
			return bookingUpdateError(err, booking.ID)
		}
		updatedBooking, updatedPayment = b, p
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to record payment result",
			"booking_id", booking.ID,
			"transaction_id", result.TransactionID,
			"error", err,
		)
		return nil, nil, txError(err, "Failed to record payment result")
	}

	s.cfg.Log.Info("Payment result recorded",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"transaction_id", result.TransactionID,
		"success", result.Success,
	)
	s.publish(ctx, events.PaymentUpdated, updatedBooking)
	s.publish(ctx, eventType, updatedBooking)
	return updatedBooking, updatedPayment, nil
}

// Cancel claims the cancellation in one versioned write before any money moves. An online
// refund is reserved on the payment as a pending record in that same write, sent to the
// gateway afterwards, and settled in a second write. A retried cancel fails the state check
// and never reaches the gateway again.
func (s *bookingService) Cancel(ctx context.Context, id string, expectedVersion int64, actor, reason string) (result *CancelResult, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Cancel", telemetry.BookingAttrs(id, ""))
	defer func() { telemetry.End(span, err) }()

	booking, err := s.loadForTransition(ctx, id, expectedVersion, model.BookingCancelled)
	if err != nil {
		return nil, err
	}
	payment, err := s.loadPayment(ctx, booking)
	if err != nil {
		return nil, err
	}
	policy, err := s.cancellationPolicy(ctx, booking.CourtID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	cancellation := &model.Cancellation{
		Reason:      strings.TrimSpace(reason),
		CancelledBy: actor,
	}
	var paymentPatch *model.PaymentPatch
	var pending *model.RefundRecord
	summary := booking.Payment

	switch payment.Status {
	case model.PaymentCompleted, model.PaymentPartiallyRefunded:
		refund := pricing.RefundFor(policy, payment.Refundable(), now, booking.StartTime)
		cancellation.RefundFraction = refund.Fraction
		cancellation.RefundAmount = refund.Amount
		cancellation.PenaltyAmount = refund.Penalty
		if refund.Amount <= 0 {
			break
		}

		record := newRefundRecord(payment, "refund_"+booking.Reference, refund.Amount, cancellation.Reason, now)
		claimed, err := s.claimRefund(booking, payment, record)
		if err != nil {
			return nil, err
		}
		paymentPatch = refundPatch(claimed)
		summary.Status = claimed.Status
		cancellation.RefundID = record.RefundID
		cancellation.RefundStatus = record.Status
		if record.Status == model.RefundPending {
			pending = &record
		}
	case model.PaymentPending, model.PaymentProcessing:
		cancelled := model.PaymentCancelled
		paymentPatch = &model.PaymentPatch{Status: &cancelled}
		summary.Status = cancelled
	}

	status := model.BookingCancelled
	bookingPatch := model.BookingPatch{
		Status:       &status,
		CancelledAt:  &now,
		Cancellation: cancellation,
		Payment:      &summary,
		UpdatedBy:    actor,
	}

	updatedBooking, updatedPayment, err := s.writeBookingAndPayment(ctx, booking, payment, bookingPatch, paymentPatch)
	if err != nil {
		s.cfg.Log.Error("Failed to cancel booking",
			"booking_id", booking.ID,
			"refund_key", refundKey(pending),
			"error", err,
		)
		return nil, txError(err, "Failed to cancel booking")
	}

	if pending != nil {
		outcome := s.settleRefund(ctx, updatedBooking, updatedPayment, *pending, actor)
		updatedBooking, updatedPayment = outcome.booking, outcome.payment
		if outcome.err != nil {
			cancellation.RefundWarning = refundWarning(pending.Amount, outcome.err)
		} else {
			cancellation.RefundWarning = outcome.warning
		}
	}

	s.cfg.Log.Info("Booking cancelled",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"cancelled_by", actor,
		"refund_amount", cancellation.RefundAmount,
		"penalty_amount", cancellation.PenaltyAmount,
	)
	s.publish(ctx, events.BookingCancelled, updatedBooking)
	if paymentPatch != nil {
		s.publish(ctx, events.PaymentUpdated, updatedBooking)
	}

	return &CancelResult{
		Booking:      updatedBooking,
		Payment:      updatedPayment,
		RefundAmount: cancellation.RefundAmount,
		Warning:      cancellation.RefundWarning,
	}, nil
}

// Refund returns part or all of a settled payment outside of a cancellation. It follows the
// same claim, gateway, settle order as Cancel.
func (s *bookingService) Refund(ctx context.Context, paymentID string, amount model.Money, reason, actor string) (result *RefundResult, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Refund")
	defer func() { telemetry.End(span, err) }()

	req := &model.RefundPaymentRequest{Amount: amount, Reason: strings.TrimSpace(reason)}
	if err = s.validator.ValidateRefund(req); err != nil {
		return nil, validationError("Invalid refund request", err)
	}
	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	booking, err := s.GetByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	key := fmt.Sprintf("refund_%s_%d", payment.Reference, len(payment.Refunds)+1)
	record := newRefundRecord(payment, key, req.Amount, req.Reason, now)
	claimed, err := s.claimRefund(booking, payment, record)
	if err != nil {
		return nil, err
	}

	summary := booking.Payment
	summary.Status = claimed.Status
	updatedBooking, updatedPayment, err := s.writeBookingAndPayment(ctx, booking, payment,
		model.BookingPatch{Payment: &summary, UpdatedBy: actor}, refundPatch(claimed))
	if err != nil {
		s.cfg.Log.Error("Failed to reserve refund",
			"payment_id", payment.ID,
			"refund_key", key,
			"error", err,
		)
		return nil, txError(err, "Failed to reserve refund")
	}

	result = &RefundResult{Payment: updatedPayment, Refund: record}
	if record.Status == model.RefundPending {
		outcome := s.settleRefund(ctx, updatedBooking, updatedPayment, record, actor)
		if outcome.err != nil {
			return nil, gatewayError(outcome.err, "Payment gateway rejected the refund").
				WithDetail("payment_id", payment.ID).
				WithDetail("amount", amount)
		}
		updatedBooking = outcome.booking
		result.Payment = outcome.payment
		result.Refund = outcome.record
		result.Warning = outcome.warning
	}

	s.cfg.Log.Info("Payment refunded",
		"payment_id", payment.ID,
		"booking_id", booking.ID,
		"refund_id", result.Refund.RefundID,
		"amount", amount,
		"actor", actor,
	)
	s.publish(ctx, events.PaymentUpdated, updatedBooking)
	return result, nil
}

// newRefundRecord builds the refund to reserve. Offline payments are refunded at the desk,
// so their record is final; online refunds stay pending until the gateway answers.
func newRefundRecord(payment *model.Payment, key string, amount model.Money, reason string, now time.Time) model.RefundRecord {
	record := model.RefundRecord{
		Key:    key,
		Amount: amount,
		Reason: reason,
		Status: model.RefundPending,
	}
	if !payment.Method.Online() {
		record.RefundID = "manual_" + strings.TrimPrefix(key, "refund_")
		record.Status = refundStatusManual
		record.CompletedAt = &now
	}
	return record
}

// claimRefund stages record on a copy of the payment.
func (s *bookingService) claimRefund(booking *model.Booking, payment *model.Payment, record model.RefundRecord) (*model.Payment, error) {
	claimed := payment.Clone()
	err := claimed.ApplyRefund(record)
	switch {
	case err == nil:
		return claimed, nil
	case errors.Is(err, model.ErrRefundNotAllowed):
		return nil, apperrors.Conflict(fmt.Sprintf("Payment cannot be refunded while %s", payment.Status)).
			WithDetail("status", payment.Status)
	case errors.Is(err, model.ErrRefundExceedsPaid):
		return nil, apperrors.Validation("Refund exceeds the refundable amount", map[string]any{
			"amount":     record.Amount,
			"refundable": payment.Refundable(),
		})
	}
	s.cfg.Log.Error("Refund does not fit the payment",
		"booking_id", booking.ID,
		"payment_id", payment.ID,
		"amount", record.Amount,
		"error", err,
	)
	return nil, apperrors.Invariant("Refund does not fit the payment", err)
}

type refundOutcome struct {
	booking *model.Booking
	payment *model.Payment
	record  model.RefundRecord
	// err is the gateway failure. The reservation is released unless the call timed out.
	err     error
	warning string
}

// settleRefund sends a reserved refund to the gateway and records the answer against the
// versions written by the claim. When that write fails the claimed state is returned with a
// warning; the pending record keeps the idempotency key so the refund can be reconciled.
func (s *bookingService) settleRefund(ctx context.Context, booking *model.Booking, payment *model.Payment, record model.RefundRecord, actor string) refundOutcome {
	outcome := refundOutcome{booking: booking, payment: payment, record: record}
	now := s.nowFn().UTC()

	res, gwErr := s.sendRefund(ctx, booking, payment, record)
	settled := payment.Clone()
	var cancellation *model.Cancellation
	if booking.Cancellation != nil {
		c := *booking.Cancellation
		cancellation = &c
	}

	switch {
	case errors.Is(gwErr, context.DeadlineExceeded):
		// The gateway may still have taken it. The reservation stays pending so the
		// amount cannot be refunded again before it is reconciled.
		outcome.err = gwErr
		if cancellation != nil {
			cancellation.RefundStatus = model.RefundPending
			cancellation.RefundWarning = refundWarning(record.Amount, gwErr)
		}
	case gwErr != nil:
		outcome.err = gwErr
		if err := settled.ReleaseRefund(record.Key); err != nil {
			return s.unrecordedRefund(outcome, err)
		}
		if cancellation != nil {
			cancellation.RefundStatus = refundStatusFailed
			cancellation.RefundWarning = refundWarning(record.Amount, gwErr)
		}
	default:
		status := res.Status
		if status == "" || status == model.RefundPending {
			status = refundStatusSubmitted
		}
		if err := settled.CompleteRefund(record.Key, res.RefundID, status, now); err != nil {
			return s.unrecordedRefund(outcome, err)
		}
		outcome.record.RefundID = res.RefundID
		outcome.record.Status = status
		outcome.record.CompletedAt = &now
		if cancellation != nil {
			cancellation.RefundID = res.RefundID
			cancellation.RefundStatus = status
		}
	}

	// The gateway has answered, so the outcome is recorded even if the caller went away.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
	defer cancel()

	summary := booking.Payment
	summary.Status = settled.Status
	bookingPatch := model.BookingPatch{Payment: &summary, Cancellation: cancellation, UpdatedBy: actor}
	b, p, err := s.writeBookingAndPayment(writeCtx, booking, payment, bookingPatch, refundPatch(settled))
	if err != nil {
		return s.unrecordedRefund(outcome, err)
	}
	outcome.booking, outcome.payment = b, p
	return outcome
}

func (s *bookingService) unrecordedRefund(outcome refundOutcome, err error) refundOutcome {
	s.cfg.Log.Error("Failed to record refund outcome",
		"booking_id", outcome.booking.ID,
		"payment_id", outcome.payment.ID,
		"refund_key", outcome.record.Key,
		"refund_id", outcome.record.RefundID,
		"gateway_error", outcome.err,
		"error", err,
	)
	if outcome.err == nil {
		outcome.warning = fmt.Sprintf("refund of %s was submitted but could not be recorded", outcome.record.Amount)
	}
	return outcome
}

func (s *bookingService) sendRefund(ctx context.Context, booking *model.Booking, payment *model.Payment, record model.RefundRecord) (*gateway.RefundResult, error) {
	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	res, err := s.gateway.Refund(gwCtx, gateway.RefundRequest{
		OrderReference: payment.Gateway.OrderReference,
		Amount:         record.Amount,
		Currency:       payment.Amount.Currency,
		Reason:         record.Reason,
		IdempotencyKey: record.Key,
	})
	if err != nil {
		s.cfg.Log.Error("Refund failed",
			"booking_id", booking.ID,
			"payment_id", payment.ID,
			"order_reference", payment.Gateway.OrderReference,
			"refund_key", record.Key,
			"amount", record.Amount,
			"error", err,
		)
		return nil, err
	}
	return res, nil
}

// writeBookingAndPayment applies both patches at the versions the caller read. A nil
// paymentPatch leaves the payment alone.
func (s *bookingService) writeBookingAndPayment(ctx context.Context, booking *model.Booking, payment *model.Payment, bookingPatch model.BookingPatch, paymentPatch *model.PaymentPatch) (*model.Booking, *model.Payment, error) {
	updatedPayment := payment
	var updatedBooking *model.Booking
	err := s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if paymentPatch != nil {
			p, err := s.payments.UpdateWithVersionCheck(txCtx, payment.ID, payment.Version, *paymentPatch)
			if err != nil {
				return paymentUpdateError(err, payment.ID)
			}
			updatedPayment = p
		}
		b, err := s.bookings.UpdateWithVersionCheck(txCtx, booking.ID, booking.Version, bookingPatch)
		if err != nil {
			return bookingUpdateError(err, booking.ID)
		}
		updatedBooking = b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updatedBooking, updatedPayment, nil
}

func refundPatch(p *model.Payment) *model.PaymentPatch {
	refunds := p.Refunds
	if refunds == nil {
		refunds = []model.RefundRecord{}
	}
	return &model.PaymentPatch{
		Status:        &p.Status,
		Refunds:       refunds,
		RefundedTotal: &p.RefundedTotal,
	}
}

func refundKey(r *model.RefundRecord) string {
	if r == nil {
		return ""
	}
	return r.Key
}

// cancellationPolicy returns the court's refund tiers. A court that no longer exists falls
// back to the default tiers.
func (s *bookingService) cancellationPolicy(ctx context.Context, courtID string) ([]model.RefundTier, error) {
	court, err := s.courts.FindByID(ctx, courtID)
	if err != nil {
		if errors.Is(err, courtserrors.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to retrieve court", err)
	}
	return court.BookingRules.CancellationPolicy, nil
}

func refundWarning(amount model.Money, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("refund of %s timed out and must be confirmed with the payment gateway", amount)
	}
	return fmt.Sprintf("refund of %s failed and must be issued manually", amount)
}

func (s *bookingService) CheckIn(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error) {
	return s.transition(ctx, "CheckIn", id, expectedVersion, actor, model.BookingCheckedIn, events.BookingCheckedIn,
		func(_ context.Context, b *model.Booking, now time.Time) error {
			if now.Before(b.StartTime) {
				return apperrors.Conflict("Check-in opens at the booking start time")
			}
			if !now.Before(b.EndTime) {
				return apperrors.Conflict("Booking has already ended")
			}
			return nil
		})
}

func (s *bookingService) Complete(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error) {
	return s.transition(ctx, "Complete", id, expectedVersion, actor, model.BookingCompleted, events.BookingCompleted,
		func(_ context.Context, b *model.Booking, now time.Time) error {
			if now.Before(b.EndTime) {
				return apperrors.Conflict("Booking has not ended yet")
			}
			return nil
		})
}

func (s *bookingService) MarkNoShow(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error) {
	return s.transition(ctx, "MarkNoShow", id, expectedVersion, actor, model.BookingNoShow, events.BookingNoShow,
		func(ctx context.Context, b *model.Booking, now time.Time) error {
			if b.Status == model.BookingCheckedIn {
				if now.Before(b.EndTime) {
					return apperrors.Conflict(fmt.Sprintf("A checked-in booking can be marked no-show from %s", b.EndTime.Format(time.RFC3339)))
				}
				return nil
			}
			grace, err := s.noShowGrace(ctx, b.CourtID)
			if err != nil {
				return err
			}
			if opens := b.StartTime.Add(grace); now.Before(opens) {
				return apperrors.Conflict(fmt.Sprintf("No-show can be recorded from %s", opens.Format(time.RFC3339)))
			}
			return nil
		})
}

func (s *bookingService) noShowGrace(ctx context.Context, courtID string) (time.Duration, error) {
	court, err := s.courts.FindByID(ctx, courtID)
	if err != nil {
		if errors.Is(err, courtserrors.ErrNotFound) {
			return 0, nil
		}
		return 0, apperrors.Internal("Failed to retrieve court", err)
	}
	return time.Duration(court.BookingRules.NoShowGraceMinutes) * time.Minute, nil
}

type transitionGuard func(ctx context.Context, b *model.Booking, now time.Time) error

func (s *bookingService) transition(ctx context.Context, op, id string, expectedVersion int64, actor string, target model.BookingStatus, eventType events.Type, guard transitionGuard) (booking *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "bookings."+op, telemetry.BookingAttrs(id, ""))
	defer func() { telemetry.End(span, err) }()

	current, err := s.loadForTransition(ctx, id, expectedVersion, target)
	if err != nil {
		return nil, err
	}
	now := s.nowFn().UTC()
	if err = guard(ctx, current, now); err != nil {
		return nil, err
	}

	patch := model.BookingPatch{Status: &target, UpdatedBy: actor}
	switch target {
	case model.BookingCheckedIn:
		patch.CheckedInAt = &now
	case model.BookingCompleted:
		patch.CompletedAt = &now
	case model.BookingNoShow:
		patch.NoShowAt = &now
	}

	booking, err = s.bookings.UpdateWithVersionCheck(ctx, current.ID, current.Version, patch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.cfg.Log.Error("Failed to update booking status", "booking_id", id, "target", target, "error", err)
		}
		return nil, bookingUpdateError(err, id)
	}

	s.cfg.Log.Info("Booking status changed",
		"booking_id", booking.ID,
		"from", current.Status,
		"to", booking.Status,
		"actor", actor,
	)
	s.publish(ctx, eventType, booking)
	return booking, nil
}

// loadForTransition loads the booking and checks the caller's version and the state machine.
// A zero expectedVersion accepts the stored version.
func (s *bookingService) loadForTransition(ctx context.Context, id string, expectedVersion int64, target model.BookingStatus) (*model.Booking, error) {
	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != booking.Version {
		return nil, apperrors.ConcurrentModification("Booking", id).
			WithDetail("expected_version", expectedVersion).
			WithDetail("current_version", booking.Version)
	}
	if !booking.Status.CanTransitionTo(target) {
		return nil, apperrors.Conflict(fmt.Sprintf("Booking cannot move from %s to %s", booking.Status, target)).
			WithDetail("status", booking.Status)
	}
	return booking, nil
}
