package service

import (
	"context"
	"sync"
	"time"

	bookingserrors "courtbook/internal/bookings/errors"
	courtserrors "courtbook/internal/courts/errors"
	paymentserrors "courtbook/internal/payments/errors"
	"courtbook/internal/payments/gateway"
	mongotx "courtbook/pkg/db/mongo"
	"courtbook/pkg/events"
	"courtbook/pkg/model"
)

// mockBookingRepository keeps bookings in memory. Func fields override single calls.
// ExecuteTransaction rolls back the bookings and, when set, payments on error.
type mockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	payments *mockPaymentRepository

	findOverlappingFunc func(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error)
	insertFunc          func(ctx context.Context, booking *model.Booking) error
	updateFunc          func(ctx context.Context, id string, expectedVersion int64, patch model.BookingPatch) (*model.Booking, error)
	findAllFunc         func(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	countFunc           func(ctx context.Context, filter model.BookingFilter) (int64, error)
	statsFunc           func(ctx context.Context, courtID string, from, to *time.Time) (*model.BookingStats, error)
}

func newMockBookingRepository() *mockBookingRepository {
	return &mockBookingRepository{bookings: map[string]*model.Booking{}}
}

func (m *mockBookingRepository) put(b *model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
}

func (m *mockBookingRepository) get(id string) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (m *mockBookingRepository) FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	if m.findOverlappingFunc != nil {
		return m.findOverlappingFunc(ctx, courtID, start, end, excludeID)
	}
	return m.overlapping(courtID, start, end, excludeID), nil
}

func (m *mockBookingRepository) overlapping(courtID string, start, end time.Time, excludeID string) []*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.CourtID == courtID && b.ID != excludeID && b.Status.IsActive() && b.Overlaps(start, end) {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out
}

func (m *mockBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, booking)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Reference == booking.Reference {
			return bookingserrors.ErrDuplicate
		}
	}
	if booking.Version == 0 {
		booking.Version = 1
	}
	cp := *booking
	m.bookings[booking.ID] = &cp
	return nil
}

func (m *mockBookingRepository) UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, patch model.BookingPatch) (*model.Booking, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, expectedVersion, patch)
	}
	return m.update(id, expectedVersion, patch)
}

func (m *mockBookingRepository) update(id string, expectedVersion int64, patch model.BookingPatch) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if b.Version != expectedVersion {
		return nil, bookingserrors.ErrVersionConflict
	}
	applyBookingPatch(b, patch)
	b.Version++
	cp := *b
	return &cp, nil
}

func applyBookingPatch(b *model.Booking, patch model.BookingPatch) {
	if patch.StartTime != nil {
		b.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		b.EndTime = *patch.EndTime
	}
	if patch.DurationMinutes != nil {
		b.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Pricing != nil {
		b.Pricing = *patch.Pricing
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Payment != nil {
		b.Payment = *patch.Payment
	}
	if patch.ConfirmedAt != nil {
		b.ConfirmedAt = patch.ConfirmedAt
	}
	if patch.CheckedInAt != nil {
		b.CheckedInAt = patch.CheckedInAt
	}
	if patch.CompletedAt != nil {
		b.CompletedAt = patch.CompletedAt
	}
	if patch.CancelledAt != nil {
		b.CancelledAt = patch.CancelledAt
	}
	if patch.NoShowAt != nil {
		b.NoShowAt = patch.NoShowAt
	}
	if patch.Cancellation != nil {
		b.Cancellation = patch.Cancellation
	}
	b.UpdatedBy = patch.UpdatedBy
}

func (m *mockBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if b := m.get(id); b != nil {
		return b, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindByReference(_ context.Context, reference string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Reference == reference {
			cp := *b
			return &cp, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) FindAll(ctx context.Context, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, filter, limit, offset)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, filter)
	}
	return 0, nil
}

func (m *mockBookingRepository) Stats(ctx context.Context, courtID string, from, to *time.Time) (*model.BookingStats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, courtID, from, to)
	}
	return &model.BookingStats{}, nil
}

func (m *mockBookingRepository) HasFutureBookings(context.Context, string, time.Time) (bool, error) {
	return false, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	bookings := m.snapshot()
	var payments map[string]*model.Payment
	if m.payments != nil {
		payments = m.payments.snapshot()
	}

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.bookings = bookings
		m.mu.Unlock()
		if m.payments != nil {
			m.payments.restore(payments)
		}
		return err
	}
	return nil
}

func (m *mockBookingRepository) snapshot() map[string]*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.Booking, len(m.bookings))
	for id, b := range m.bookings {
		cp := *b
		out[id] = &cp
	}
	return out
}

type mockLockRepository struct {
	mu           sync.Mutex
	acquired     int
	released     int
	tryAcquireFn func(ctx context.Context, lock *model.BookingLock) error
}

func (m *mockLockRepository) TryAcquire(ctx context.Context, lock *model.BookingLock) error {
	if m.tryAcquireFn != nil {
		if err := m.tryAcquireFn(ctx, lock); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.acquired++
	m.mu.Unlock()
	return nil
}

func (m *mockLockRepository) Release(context.Context, string, string) error {
	m.mu.Lock()
	m.released++
	m.mu.Unlock()
	return nil
}

type mockCourtReader struct {
	courts map[string]*model.Court
}

func (m *mockCourtReader) FindByID(_ context.Context, id string) (*model.Court, error) {
	c, ok := m.courts[id]
	if !ok {
		return nil, courtserrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

type mockPaymentRepository struct {
	mu       sync.Mutex
	payments map[string]*model.Payment

	updateFunc func(ctx context.Context, id string, expectedVersion int64, patch model.PaymentPatch) (*model.Payment, error)
}

func newMockPaymentRepository() *mockPaymentRepository {
	return &mockPaymentRepository{payments: map[string]*model.Payment{}}
}

func (m *mockPaymentRepository) put(p *model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
}

func (m *mockPaymentRepository) get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *mockPaymentRepository) snapshot() map[string]*model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.Payment, len(m.payments))
	for id, p := range m.payments {
		out[id] = p.Clone()
	}
	return out
}

func (m *mockPaymentRepository) restore(payments map[string]*model.Payment) {
	m.mu.Lock()
	m.payments = payments
	m.mu.Unlock()
}

func (m *mockPaymentRepository) Insert(_ context.Context, payment *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; ok {
		return paymentserrors.ErrDuplicate
	}
	if payment.Version == 0 {
		payment.Version = 1
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *mockPaymentRepository) FindByID(_ context.Context, id string) (*model.Payment, error) {
	if p := m.get(id); p != nil {
		return p, nil
	}
	return nil, paymentserrors.ErrNotFound
}

func (m *mockPaymentRepository) FindByBookingID(_ context.Context, bookingID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, paymentserrors.ErrNotFound
}

func (m *mockPaymentRepository) UpdateWithVersionCheck(ctx context.Context, id string, expectedVersion int64, patch model.PaymentPatch) (*model.Payment, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, expectedVersion, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, paymentserrors.ErrNotFound
	}
	if p.Version != expectedVersion {
		return nil, paymentserrors.ErrVersionConflict
	}
	if patch.Amount != nil {
		p.Amount = *patch.Amount
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Gateway != nil {
		p.Gateway = *patch.Gateway
	}
	if patch.Method != nil {
		p.Method = *patch.Method
	}
	if patch.Refunds != nil {
		p.Refunds = patch.Refunds
	}
	if patch.RefundedTotal != nil {
		p.RefundedTotal = *patch.RefundedTotal
	}
	if patch.CompletedAt != nil {
		p.CompletedAt = patch.CompletedAt
	}
	if patch.FailedAt != nil {
		p.FailedAt = patch.FailedAt
	}
	p.Version++
	cp := *p
	return &cp, nil
}

type mockMembershipRepository struct {
	findActiveFunc func(ctx context.Context, userID string, at time.Time) (*model.Membership, error)
}

func (m *mockMembershipRepository) FindActiveByUser(ctx context.Context, userID string, at time.Time) (*model.Membership, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, userID, at)
	}
	return nil, nil
}

type mockGateway struct {
	mu         sync.Mutex
	orders     []gateway.OrderRequest
	refunds    []gateway.RefundRequest
	createFunc func(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	refundFunc func(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error)
	verifyFunc func(ctx context.Context, eventID string) (*gateway.VerifiedEvent, error)
}

func (m *mockGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	m.mu.Lock()
	m.orders = append(m.orders, req)
	m.mu.Unlock()
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &gateway.Order{OrderToken: "chrg_" + req.Reference}, nil
}

func (m *mockGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	m.mu.Lock()
	m.refunds = append(m.refunds, req)
	m.mu.Unlock()
	if m.refundFunc != nil {
		return m.refundFunc(ctx, req)
	}
	return &gateway.RefundResult{RefundID: "rfnd_1", Status: "submitted"}, nil
}

func (m *mockGateway) VerifyEvent(ctx context.Context, eventID string) (*gateway.VerifiedEvent, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, eventID)
	}
	return nil, gateway.ErrEventUnverified
}

func (m *mockGateway) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockGateway) refundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refunds)
}

type mockPublisher struct {
	mu          sync.Mutex
	events      []events.Event
	publishFunc func(ctx context.Context, event events.Event) error
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.publishFunc != nil {
		return m.publishFunc(ctx, event)
	}
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
