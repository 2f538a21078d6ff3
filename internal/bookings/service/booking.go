package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"courtbook/internal/bookings/availability"
	bookingserrors "courtbook/internal/bookings/errors"
	"courtbook/internal/bookings/pricing"
	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/validator"
	courtserrors "courtbook/internal/courts/errors"
	membershipsrepo "courtbook/internal/memberships/repository"
	paymentserrors "courtbook/internal/payments/errors"
	"courtbook/internal/payments/gateway"
	paymentsrepo "courtbook/internal/payments/repository"
	"courtbook/pkg/config"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/events"
	"courtbook/pkg/model"
	"courtbook/pkg/reference"
	"courtbook/pkg/sanitizer"
	"courtbook/pkg/telemetry"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxNotesLength = 500

	// ActorSystem marks changes made by the service itself, such as gateway callbacks.
	ActorSystem = "system"

	lockRetryMin = 25 * time.Millisecond
	lockRetryMax = 400 * time.Millisecond
)

var tracer = telemetry.Tracer("courtbook/bookings")

type BookingService interface {
	Create(ctx context.Context, req *model.CreateBookingRequest, actor string) (*CreateResult, error)
	RetryPayment(ctx context.Context, id string, req *model.RetryPaymentRequest, actor string) (*CreateResult, error)
	ConfirmPayment(ctx context.Context, reference string, result model.GatewayResult) (*model.Booking, error)
	Cancel(ctx context.Context, id string, expectedVersion int64, actor, reason string) (*CancelResult, error)
	Reschedule(ctx context.Context, id string, expectedVersion int64, req *model.RescheduleBookingRequest, actor string) (*model.Booking, error)
	Refund(ctx context.Context, paymentID string, amount model.Money, reason, actor string) (*RefundResult, error)
	CheckIn(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error)
	Complete(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error)
	MarkNoShow(ctx context.Context, id string, expectedVersion int64, actor string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetByReference(ctx context.Context, reference string) (*model.Booking, error)
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID string) (*model.Payment, error)
	List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	Availability(ctx context.Context, courtID string, start, end time.Time) (*AvailabilityResult, error)
	Quote(ctx context.Context, req *model.QuoteRequest) (*model.PriceBreakdown, error)
	Stats(ctx context.Context, courtID string, from, to *time.Time) (*model.BookingStats, error)
}

// CourtReader is the part of the court store the booking lifecycle needs.
type CourtReader interface {
	FindByID(ctx context.Context, id string) (*model.Court, error)
}

type CreateResult struct {
	Booking *model.Booking `json:"booking"`
	Payment *model.Payment `json:"payment"`
	Order   *gateway.Order `json:"order,omitempty"`
}

type CancelResult struct {
	Booking      *model.Booking `json:"booking"`
	Payment      *model.Payment `json:"payment,omitempty"`
	RefundAmount model.Money    `json:"refund_amount"`
	Warning      string         `json:"warning,omitempty"`
}

type RefundResult struct {
	Payment *model.Payment     `json:"payment"`
	Refund  model.RefundRecord `json:"refund"`
	Warning string             `json:"warning,omitempty"`
}

type AvailabilityResult struct {
	Available bool                    `json:"available"`
	Reason    availability.Reason     `json:"reason,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Conflicts []availability.Conflict `json:"conflicts,omitempty"`
}

type Dependencies struct {
	Bookings    repository.BookingRepository
	Locks       repository.BookingLockRepository
	Courts      CourtReader
	Payments    paymentsrepo.PaymentRepository
	Memberships membershipsrepo.MembershipRepository
	Gateway     gateway.Gateway
	Publisher   events.Publisher
	Validator   *validator.BookingValidator
	References  *reference.Generator
	// Now defaults to time.Now.
	Now func() time.Time
}

type bookingService struct {
	bookings    repository.BookingRepository
	locks       repository.BookingLockRepository
	courts      CourtReader
	payments    paymentsrepo.PaymentRepository
	memberships membershipsrepo.MembershipRepository
	gateway     gateway.Gateway
	publisher   events.Publisher
	validator   *validator.BookingValidator
	refs        *reference.Generator
	checker     *availability.Checker
	calculator  *pricing.Calculator
	courtLocks  *courtLocks
	nowFn       func() time.Time
	cfg         *config.Config
}

func NewBookingService(deps Dependencies, cfg *config.Config) BookingService {
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	refs := deps.References
	if refs == nil {
		refs = reference.NewGeneratorWithClock(nowFn)
	}
	return &bookingService{
		bookings:    deps.Bookings,
		locks:       deps.Locks,
		courts:      deps.Courts,
		payments:    deps.Payments,
		memberships: deps.Memberships,
		gateway:     deps.Gateway,
		publisher:   deps.Publisher,
		validator:   deps.Validator,
		refs:        refs,
		checker:     availability.NewCheckerWithClock(deps.Bookings, nowFn),
		calculator:  pricing.NewCalculator(cfg.DefaultCurrency),
		courtLocks:  newCourtLocks(),
		nowFn:       nowFn,
		cfg:         cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, req *model.CreateBookingRequest, actor string) (result *CreateResult, err error) {
	ctx, span := tracer.Start(ctx, "bookings.Create", telemetry.BookingAttrs("", req.CourtID))
	defer func() { telemetry.End(span, err) }()

	s.applyDefaults(req)
	if err = s.validate(req, s.sanitize(req)); err != nil {
		return nil, err
	}

	court, err := s.loadCourt(ctx, req.CourtID)
	if err != nil {
		return nil, err
	}

	booking, payment, err := s.reserve(ctx, court, req, actor)
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking created",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"court_id", booking.CourtID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
		"total", booking.Pricing.Total,
	)
	s.publish(ctx, events.BookingCreated, booking)

	return s.settle(ctx, booking, payment, req.PaymentToken, actor)
}

// reserve checks the slot and persists the pending booking and payment while holding the court lock.
func (s *bookingService) reserve(ctx context.Context, court *model.Court, req *model.CreateBookingRequest, actor string) (*model.Booking, *model.Payment, error) {
	release, err := s.lockCourt(ctx, court.ID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if err := s.checker.Check(ctx, court, req.StartTime, req.EndTime, ""); err != nil {
		return nil, nil, s.availabilityError(err, court.ID)
	}

	now := s.nowFn().UTC()
	membership, err := s.memberships.FindActiveByUser(ctx, req.UserID, now)
	if err != nil {
		s.cfg.Log.Error("Failed to load membership", "user_id", req.UserID, "error", err)
		return nil, nil, apperrors.Internal("Failed to load membership", err)
	}

	breakdown, err := s.calculator.Price(pricing.Quote{
		Court:      court,
		Start:      req.StartTime,
		End:        req.EndTime,
		Membership: membership,
		Equipment:  req.Equipment,
		At:         now,
	})
	if err != nil {
		return nil, nil, s.pricingError(err, court.ID)
	}

	method := req.PaymentMethod
	if breakdown.Total == 0 {
		method = model.MethodFree
	}

	paymentID := primitive.NewObjectID().Hex()
	booking := &model.Booking{
		ID:              primitive.NewObjectID().Hex(),
		Reference:       s.refs.Booking(),
		CourtID:         court.ID,
		CourtCode:       court.Code,
		UserID:          req.UserID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: int(req.EndTime.Sub(req.StartTime).Minutes()),
		Equipment:       req.Equipment,
		Contact:         req.Contact,
		Notes:           req.Notes,
		Pricing:         *breakdown,
		Payment: model.PaymentSummary{
			PaymentID: paymentID,
			Status:    model.PaymentPending,
			Method:    method,
		},
		Status:    model.BookingPending,
		Version:   1,
		CreatedBy: actor,
		UpdatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payment := &model.Payment{
		ID:        paymentID,
		Reference: s.refs.Payment(),
		BookingID: booking.ID,
		UserID:    req.UserID,
		Amount: model.PaymentAmount{
			Original: breakdown.Subtotal,
			Final:    breakdown.Total,
			Currency: breakdown.Currency,
		},
		Method:    method,
		Status:    model.PaymentPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.bookings.FindOverlapping(txCtx, court.ID, booking.StartTime, booking.EndTime, booking.ID)
		if err != nil {
			return apperrors.Internal("Failed to re-check availability", err)
		}
		if conflicts := availability.Conflicts(existing, booking.StartTime, booking.EndTime, booking.ID); len(conflicts) > 0 {
			return apperrors.Conflict("the requested time overlaps an existing booking").
				WithDetail("reason", availability.SlotConflict).
				WithDetail("conflicts", conflicts)
		}
		if err := s.bookings.Insert(txCtx, booking); err != nil {
			if errors.Is(err, bookingserrors.ErrDuplicate) {
				return apperrors.Conflict("Booking reference already in use, please retry").WithDetail("retryable", true)
			}
			return apperrors.Internal("Failed to create booking", err)
		}
		if err := s.payments.Insert(txCtx, payment); err != nil {
			if errors.Is(err, paymentserrors.ErrDuplicate) {
				return apperrors.Conflict("Payment reference already in use, please retry").WithDetail("retryable", true)
			}
			return apperrors.Internal("Failed to create payment", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking", "court_id", court.ID, "error", err)
		return nil, nil, txError(err, "Failed to create booking")
	}

	return booking, payment, nil
}

// settle starts payment for a freshly stored booking according to its method.
func (s *bookingService) settle(ctx context.Context, booking *model.Booking, payment *model.Payment, token, actor string) (*CreateResult, error) {
	switch {
	case payment.Method == model.MethodFree:
		confirmed, paid, err := s.applyResult(ctx, booking, payment, model.GatewayResult{
			TransactionID: "free_" + booking.Reference,
			Success:       true,
		}, actor)
		if err != nil {
			return nil, err
		}
		return &CreateResult{Booking: confirmed, Payment: paid}, nil
	case !payment.Method.Online():
		return &CreateResult{Booking: booking, Payment: payment}, nil
	}
	return s.startOrder(ctx, booking, payment, token, actor)
}

func (s *bookingService) startOrder(ctx context.Context, booking *model.Booking, payment *model.Payment, token, actor string) (*CreateResult, error) {
	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	defer cancel()

	order, err := s.gateway.CreateOrder(gwCtx, gateway.OrderRequest{
		Amount:    payment.Amount.Final,
		Currency:  payment.Amount.Currency,
		Reference: booking.Reference,
		Method:    payment.Method,
		ReturnURI: s.cfg.PaymentReturnURI,
		Token:     token,
		Metadata: map[string]string{
			"booking_id": booking.ID,
			"payment_id": payment.ID,
		},
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create payment order",
			"booking_id", booking.ID,
			"reference", booking.Reference,
			"method", payment.Method,
			"error", err,
		)
		return nil, gatewayError(err, "Payment gateway rejected the order").
			WithDetail("booking_id", booking.ID).
			WithDetail("reference", booking.Reference)
	}

	processing := model.PaymentProcessing
	gatewayDetails := payment.Gateway
	gatewayDetails.OrderReference = order.OrderToken
	summary := booking.Payment
	summary.Status = processing
	summary.OrderReference = order.OrderToken

	var updatedBooking *model.Booking
	var updatedPayment *model.Payment
	err = s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		p, err := s.payments.UpdateWithVersionCheck(txCtx, payment.ID, payment.Version, model.PaymentPatch{
			Status:  &processing,
			Gateway: &gatewayDetails,
		})
		if err != nil {
			return paymentUpdateError(err, payment.ID)
		}
		b, err := s.bookings.UpdateWithVersionCheck(txCtx, booking.ID, booking.Version, model.BookingPatch{
			Payment:   &summary,
			UpdatedBy: actor,
		})
		if err != nil {
			return bookingUpdateError(err, booking.ID)
		}
		updatedBooking, updatedPayment = b, p
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to store payment order",
			"booking_id", booking.ID,
			"order_reference", order.OrderToken,
			"error", err,
		)
		return nil, txError(err, "Failed to store payment order")
	}

	s.cfg.Log.Info("Payment order created",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"order_reference", order.OrderToken,
	)
	return &CreateResult{Booking: updatedBooking, Payment: updatedPayment, Order: order}, nil
}

func (s *bookingService) RetryPayment(ctx context.Context, id string, req *model.RetryPaymentRequest, actor string) (result *CreateResult, err error) {
	ctx, span := tracer.Start(ctx, "bookings.RetryPayment", telemetry.BookingAttrs(id, ""))
	defer func() { telemetry.End(span, err) }()

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingPending {
		return nil, apperrors.Conflict(fmt.Sprintf("Payment can only be retried for a pending booking, booking is %s", booking.Status))
	}
	if !booking.Payment.Method.Online() {
		return nil, apperrors.Conflict(fmt.Sprintf("Payment method %s does not use the payment gateway", booking.Payment.Method))
	}

	payment, err := s.loadPayment(ctx, booking)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentPending && payment.Status != model.PaymentProcessing {
		return nil, apperrors.Conflict(fmt.Sprintf("Payment can only be retried while pending, payment is %s", payment.Status))
	}

	var token string
	if req != nil {
		token = strings.TrimSpace(req.PaymentToken)
	}
	if payment.Method == model.MethodCreditCard && token == "" {
		return nil, apperrors.ValidationFields("Invalid payment retry", []apperrors.FieldError{
			{Field: "payment_token", Message: "payment_token is required for credit_card"},
		})
	}
	return s.startOrder(ctx, booking, payment, token, actor)
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetByReference(ctx context.Context, ref string) (*model.Booking, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return nil, apperrors.InvalidInput("Booking reference cannot be empty")
	}

	booking, err := s.bookings.FindByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", ref)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Payment ID cannot be empty")
	}

	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, paymentLookupError(err, id)
	}
	return payment, nil
}

func (s *bookingService) GetPaymentByBooking(ctx context.Context, bookingID string) (*model.Payment, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	payment, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Payment").WithDetail("booking_id", bookingID)
		}
		return nil, paymentLookupError(err, bookingID)
	}
	return payment, nil
}

func paymentLookupError(err error, id string) error {
	switch {
	case errors.Is(err, paymentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Payment", id)
	case errors.Is(err, paymentserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid payment ID format")
	}
	return apperrors.Internal("Failed to retrieve payment", err)
}

func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, 0, apperrors.InvalidInput("to must be after from")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.bookings.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.bookings.FindAll(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) Availability(ctx context.Context, courtID string, start, end time.Time) (*AvailabilityResult, error) {
	if start.IsZero() || end.IsZero() {
		return nil, apperrors.InvalidInput("start and end are required")
	}

	court, err := s.loadCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}

	err = s.checker.Check(ctx, court, start.UTC(), end.UTC(), "")
	if err == nil {
		return &AvailabilityResult{Available: true}, nil
	}
	rejection, ok := availability.AsRejection(err)
	if !ok {
		s.cfg.Log.Error("Failed to check availability", "court_id", courtID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}
	return &AvailabilityResult{
		Available: false,
		Reason:    rejection.Reason,
		Message:   rejection.Message,
		Conflicts: rejection.Conflicts,
	}, nil
}

func (s *bookingService) Quote(ctx context.Context, req *model.QuoteRequest) (*model.PriceBreakdown, error) {
	req.CourtID = strings.TrimSpace(req.CourtID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.StartTime = req.StartTime.UTC()
	req.EndTime = req.EndTime.UTC()
	if err := s.validator.ValidateQuote(req); err != nil {
		return nil, validationError("Invalid quote request", err)
	}

	court, err := s.loadCourt(ctx, req.CourtID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	var membership *model.Membership
	if req.UserID != "" {
		membership, err = s.memberships.FindActiveByUser(ctx, req.UserID, now)
		if err != nil {
			s.cfg.Log.Error("Failed to load membership", "user_id", req.UserID, "error", err)
			return nil, apperrors.Internal("Failed to load membership", err)
		}
	}

	breakdown, err := s.calculator.Price(pricing.Quote{
		Court:      court,
		Start:      req.StartTime,
		End:        req.EndTime,
		Membership: membership,
		Equipment:  req.Equipment,
		At:         now,
	})
	if err != nil {
		return nil, s.pricingError(err, court.ID)
	}
	return breakdown, nil
}

func (s *bookingService) Stats(ctx context.Context, courtID string, from, to *time.Time) (*model.BookingStats, error) {
	if from != nil && to != nil && !to.After(*from) {
		return nil, apperrors.InvalidInput("to must be after from")
	}

	stats, err := s.bookings.Stats(ctx, strings.TrimSpace(courtID), from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to compute booking stats", "court_id", courtID, "error", err)
		return nil, apperrors.Internal("Failed to compute booking stats", err)
	}
	return stats, nil
}

func (s *bookingService) applyDefaults(req *model.CreateBookingRequest) {
	req.StartTime = req.StartTime.UTC()
	req.EndTime = req.EndTime.UTC()
	req.PaymentMethod = model.PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.PaymentMethod))))
	if req.Contact != nil && req.Contact.Name == "" && req.Contact.Phone == "" {
		req.Contact = nil
	}
}

// sanitize normalises free text and the contact phone. A phone that cannot be parsed is
// reported as a field error and cleared so it is not reported twice.
func (s *bookingService) sanitize(req *model.CreateBookingRequest) validator.ValidationErrors {
	req.CourtID = strings.TrimSpace(req.CourtID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.PaymentToken = strings.TrimSpace(req.PaymentToken)
	req.Notes = sanitizer.NormalizeNotes(req.Notes, maxNotesLength)

	if req.Contact == nil {
		return nil
	}
	req.Contact.Name = sanitizer.NormalizeName(req.Contact.Name)
	if req.Contact.Phone == "" {
		return nil
	}
	phone, err := sanitizer.NormalizePhone(req.Contact.Phone, s.cfg.DefaultPhoneRegion)
	if err != nil {
		req.Contact.Phone = ""
		return validator.ValidationErrors{{Field: "contact.phone", Message: "contact.phone is not a valid phone number"}}
	}
	req.Contact.Phone = phone
	return nil
}

func (s *bookingService) validate(req *model.CreateBookingRequest, errs validator.ValidationErrors) error {
	if err := s.validator.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.Internal("Failed to validate booking", err)
		}
		errs = append(errs, verrs...)
	}
	if req.PaymentMethod == model.MethodCreditCard && req.PaymentToken == "" {
		errs = append(errs, validator.ValidationError{Field: "payment_token", Message: "payment_token is required for credit_card"})
	}
	if len(errs) > 0 {
		return apperrors.ValidationFields("Invalid booking request", errs.Fields())
	}
	return nil
}

func (s *bookingService) loadCourt(ctx context.Context, id string) (*model.Court, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Court ID cannot be empty")
	}
	court, err := s.courts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, courtserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Court", id)
		}
		if errors.Is(err, courtserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid court ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve court", err)
	}
	return court, nil
}

func (s *bookingService) loadPayment(ctx context.Context, booking *model.Booking) (*model.Payment, error) {
	payment, err := s.payments.FindByID(ctx, booking.Payment.PaymentID)
	if err != nil {
		if errors.Is(err, paymentserrors.ErrNotFound) || errors.Is(err, paymentserrors.ErrInvalidID) {
			s.cfg.Log.Error("Booking references a missing payment",
				"booking_id", booking.ID,
				"payment_id", booking.Payment.PaymentID,
			)
			return nil, apperrors.Invariant("Booking has no payment record", err)
		}
		return nil, apperrors.Internal("Failed to retrieve payment", err)
	}
	return payment, nil
}

// lockCourt takes the in-process court lock and then the cross-instance lock document,
// retrying with backoff until BookingLockWait has passed.
func (s *bookingService) lockCourt(ctx context.Context, courtID string) (func(), error) {
	unlock := s.courtLocks.Lock(courtID)

	lock := &model.BookingLock{
		ID:      repository.CourtLockID(courtID),
		CourtID: courtID,
		Owner:   uuid.NewString(),
	}
	deadline := time.Now().Add(s.cfg.BookingLockWait)
	backoff := lockRetryMin
	for {
		lock.ExpiresAt = time.Now().UTC().Add(s.cfg.BookingLockTTL)
		err := s.locks.TryAcquire(ctx, lock)
		if err == nil {
			break
		}
		if !errors.Is(err, bookingserrors.ErrLockHeld) {
			unlock()
			s.cfg.Log.Error("Failed to acquire court lock", "court_id", courtID, "error", err)
			return nil, apperrors.Internal("Failed to acquire court lock", err)
		}
		if time.Now().Add(backoff).After(deadline) {
			unlock()
			s.cfg.Log.Warn("Court lock is held by another instance", "court_id", courtID, "waited", s.cfg.BookingLockWait)
			return nil, apperrors.Conflict("Court is busy with another booking, please retry").WithDetail("retryable", true)
		}
		select {
		case <-ctx.Done():
			unlock()
			return nil, apperrors.Timeout("Timed out waiting for court lock")
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, lockRetryMax)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WriteTimeout)
		defer cancel()
		if err := s.locks.Release(releaseCtx, lock.ID, lock.Owner); err != nil {
			s.cfg.Log.Warn("Failed to release court lock", "lock_id", lock.ID, "error", err)
		}
		unlock()
	}, nil
}

func (s *bookingService) availabilityError(err error, courtID string) error {
	rejection, ok := availability.AsRejection(err)
	if !ok {
		s.cfg.Log.Error("Failed to check availability", "court_id", courtID, "error", err)
		return apperrors.Internal("Failed to check availability", err)
	}
	switch rejection.Reason {
	case availability.CourtInactive:
		return apperrors.CourtUnavailable(rejection.Message).WithDetail("reason", rejection.Reason)
	case availability.SlotConflict:
		return apperrors.Conflict(rejection.Message).
			WithDetail("reason", rejection.Reason).
			WithDetail("conflicts", rejection.Conflicts)
	default:
		return apperrors.Validation(rejection.Message, map[string]any{"reason": rejection.Reason})
	}
}

func (s *bookingService) pricingError(err error, courtID string) error {
	switch {
	case errors.Is(err, pricing.ErrEquipmentExclusive):
		return apperrors.ValidationFields("Invalid equipment selection", []apperrors.FieldError{
			{Field: "equipment.set", Message: err.Error()},
		})
	case errors.Is(err, pricing.ErrInvalidInterval):
		return apperrors.ValidationFields("Invalid booking interval", []apperrors.FieldError{
			{Field: "end_time", Message: err.Error()},
		})
	case errors.Is(err, pricing.ErrNegativeRate), errors.Is(err, pricing.ErrNegativeTotal):
		s.cfg.Log.Error("Pricing produced an invalid breakdown", "court_id", courtID, "error", err)
		return apperrors.Invariant("Price calculation produced an invalid breakdown", err)
	}
	s.cfg.Log.Error("Failed to price booking", "court_id", courtID, "error", err)
	return apperrors.Internal("Failed to price booking", err)
}

func (s *bookingService) publish(ctx context.Context, t events.Type, booking *model.Booking) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.ForBooking(t, booking, s.nowFn())); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"type", t,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.ValidationFields(message, verrs.Fields())
	}
	return apperrors.Internal("Failed to validate request", err)
}

func gatewayError(err error, message string) *apperrors.AppError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.PaymentTimeout("Payment gateway did not respond in time")
	case errors.Is(err, gateway.ErrTokenRequired):
		return apperrors.ValidationFields("Invalid payment request", []apperrors.FieldError{
			{Field: "payment_token", Message: err.Error()},
		})
	}
	return apperrors.Payment(message, err)
}

func bookingUpdateError(err error, id string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrVersionConflict):
		return apperrors.ConcurrentModification("Booking", id)
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Internal("Failed to update booking", err)
}

func paymentUpdateError(err error, id string) error {
	switch {
	case errors.Is(err, paymentserrors.ErrVersionConflict):
		return apperrors.ConcurrentModification("Payment", id)
	case errors.Is(err, paymentserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Payment", id)
	}
	return apperrors.Internal("Failed to update payment", err)
}

func txError(err error, message string) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal(message, err)
}
