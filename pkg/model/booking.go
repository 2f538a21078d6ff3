package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCheckedIn BookingStatus = "checked_in"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

// ActiveBookingStatuses hold a court slot.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedIn}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCheckedIn, BookingCompleted, BookingCancelled, BookingNoShow},
	BookingCheckedIn: {BookingCompleted, BookingNoShow},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) IsActive() bool {
	for _, active := range ActiveBookingStatuses {
		if s == active {
			return true
		}
	}
	return false
}

type Booking struct {
	ID              string             `json:"id,omitempty" bson:"_id,omitempty"`
	Reference       string             `json:"reference" bson:"reference"`
	CourtID         string             `json:"court_id" bson:"court_id"`
	CourtCode       string             `json:"court_code" bson:"court_code"`
	UserID          string             `json:"user_id" bson:"user_id"`
	StartTime       time.Time          `json:"start_time" bson:"start_time"`
	EndTime         time.Time          `json:"end_time" bson:"end_time"`
	DurationMinutes int                `json:"duration_minutes" bson:"duration_minutes"`
	Equipment       EquipmentSelection `json:"equipment" bson:"equipment"`
	Contact         *Contact           `json:"contact,omitempty" bson:"contact,omitempty"`
	Notes           string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Pricing         PriceBreakdown     `json:"pricing" bson:"pricing"`
	Payment         PaymentSummary     `json:"payment" bson:"payment"`
	Status          BookingStatus      `json:"status" bson:"status"`
	ConfirmedAt     *time.Time         `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CheckedInAt     *time.Time         `json:"checked_in_at,omitempty" bson:"checked_in_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	NoShowAt        *time.Time         `json:"no_show_at,omitempty" bson:"no_show_at,omitempty"`
	Cancellation    *Cancellation      `json:"cancellation,omitempty" bson:"cancellation,omitempty"`
	Version         int64              `json:"version" bson:"version"`
	CreatedBy       string             `json:"created_by" bson:"created_by"`
	UpdatedBy       string             `json:"updated_by" bson:"updated_by"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

type EquipmentSelection struct {
	Set     bool `json:"set" bson:"set"`
	Rackets int  `json:"rackets" bson:"rackets" validate:"gte=0,lte=10"`
	Balls   int  `json:"balls" bson:"balls" validate:"gte=0,lte=50"`
}

func (e EquipmentSelection) Itemised() bool {
	return e.Rackets > 0 || e.Balls > 0
}

type Contact struct {
	Name  string `json:"name,omitempty" bson:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
}

type PaymentSummary struct {
	PaymentID      string        `json:"payment_id,omitempty" bson:"payment_id,omitempty"`
	Status         PaymentStatus `json:"status" bson:"status"`
	Method         PaymentMethod `json:"method" bson:"method"`
	OrderReference string        `json:"order_reference,omitempty" bson:"order_reference,omitempty"`
	TransactionID  string        `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
}

type Cancellation struct {
	Reason         string  `json:"reason" bson:"reason"`
	CancelledBy    string  `json:"cancelled_by" bson:"cancelled_by"`
	RefundFraction float64 `json:"refund_fraction" bson:"refund_fraction"`
	RefundAmount   Money   `json:"refund_amount" bson:"refund_amount"`
	PenaltyAmount  Money   `json:"penalty_amount" bson:"penalty_amount"`
	RefundID       string  `json:"refund_id,omitempty" bson:"refund_id,omitempty"`
	RefundStatus   string  `json:"refund_status,omitempty" bson:"refund_status,omitempty"`
	RefundWarning  string  `json:"refund_warning,omitempty" bson:"refund_warning,omitempty"`
}

// BookingPatch lists the fields a lifecycle transition or reschedule may change. Nil fields
// are left untouched.
type BookingPatch struct {
	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes *int
	Pricing         *PriceBreakdown
	Status          *BookingStatus
	Payment         *PaymentSummary
	ConfirmedAt     *time.Time
	CheckedInAt     *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	NoShowAt        *time.Time
	Cancellation    *Cancellation
	UpdatedBy       string
}

// Overlaps reports half-open interval overlap; touching endpoints do not overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

func (b *Booking) HoursUntilStart(now time.Time) float64 {
	return b.StartTime.Sub(now).Hours()
}

func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

type BookingFilter struct {
	CourtID  string
	UserID   string
	Statuses []BookingStatus
	From     *time.Time
	To       *time.Time
}

type BookingStats struct {
	TotalBookings   int64 `json:"total_bookings" bson:"total_bookings"`
	PaidBookings    int64 `json:"paid_bookings" bson:"paid_bookings"`
	TotalRevenue    Money `json:"total_revenue" bson:"total_revenue"`
	AvgBookingValue Money `json:"avg_booking_value" bson:"avg_booking_value"`
}
