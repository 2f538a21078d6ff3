package model

import (
	"strings"
	"sync"
	"time"
)

type CourtStatus string

const (
	CourtActive      CourtStatus = "active"
	CourtMaintenance CourtStatus = "maintenance"
	CourtClosed      CourtStatus = "closed"
	CourtReserved    CourtStatus = "reserved"
)

type Court struct {
	ID             string                    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Code           string                    `json:"code" bson:"code" validate:"required,court_code"`
	Name           string                    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Description    string                    `json:"description,omitempty" bson:"description,omitempty" validate:"omitempty,max=500"`
	Type           string                    `json:"type" bson:"type" validate:"required,oneof=indoor outdoor"`
	Status         CourtStatus               `json:"status" bson:"status" validate:"required,oneof=active maintenance closed reserved"`
	TimeZone       string                    `json:"time_zone" bson:"time_zone" validate:"required,timezone"`
	Pricing        CourtPricing              `json:"pricing" bson:"pricing"`
	PeakHours      []PeakRule                `json:"peak_hours,omitempty" bson:"peak_hours" validate:"omitempty,max=20,dive"`
	OperatingHours map[string]OperatingHours `json:"operating_hours" bson:"operating_hours" validate:"required,min=1,max=7,dive,keys,weekday_name,endkeys"`
	Equipment      EquipmentRates            `json:"equipment" bson:"equipment"`
	BookingRules   BookingRules              `json:"booking_rules" bson:"booking_rules"`
	Version        int64                     `json:"version" bson:"version"`
	CreatedAt      time.Time                 `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at" bson:"updated_at"`
}

type CourtPricing struct {
	BaseRate       float64  `json:"base_rate" bson:"base_rate" validate:"gt=0"`
	WeekendRate    *float64 `json:"weekend_rate,omitempty" bson:"weekend_rate,omitempty" validate:"omitempty,gte=0"`
	MemberDiscount float64  `json:"member_discount" bson:"member_discount" validate:"gte=0,lte=0.5"`
	TaxRate        float64  `json:"tax_rate" bson:"tax_rate" validate:"gte=0,lte=1"`
	Currency       string   `json:"currency" bson:"currency" validate:"required,iso4217"`
}

// PeakRule multiplies the hourly rate inside [Start, End) on the listed weekdays (Sunday=0).
type PeakRule struct {
	Start      string  `json:"start" bson:"start" validate:"required,clock_time"`
	End        string  `json:"end" bson:"end" validate:"required,clock_time"`
	Days       []int   `json:"days" bson:"days" validate:"required,min=1,max=7,weekday_set"`
	Multiplier float64 `json:"multiplier" bson:"multiplier" validate:"gte=1,lte=3"`
}

type OperatingHours struct {
	Open   string `json:"open" bson:"open" validate:"omitempty,clock_time"`
	Close  string `json:"close" bson:"close" validate:"omitempty,clock_time"`
	IsOpen bool   `json:"is_open" bson:"is_open"`
}

type EquipmentRates struct {
	RacketRate float64 `json:"racket_rate" bson:"racket_rate" validate:"gte=0"`
	BallRate   float64 `json:"ball_rate" bson:"ball_rate" validate:"gte=0"`
	SetRate    float64 `json:"set_rate" bson:"set_rate" validate:"gte=0"`
}

type BookingRules struct {
	AdvanceBookingDays int          `json:"advance_booking_days" bson:"advance_booking_days" validate:"gte=1,lte=365"`
	MinDurationMinutes int          `json:"min_duration_minutes" bson:"min_duration_minutes" validate:"gte=15,lte=1440"`
	MaxDurationMinutes int          `json:"max_duration_minutes" bson:"max_duration_minutes" validate:"gte=15,lte=1440,gtefield=MinDurationMinutes"`
	NoShowGraceMinutes int          `json:"no_show_grace_minutes" bson:"no_show_grace_minutes" validate:"gte=0,lte=240"`
	CancellationPolicy []RefundTier `json:"cancellation_policy" bson:"cancellation_policy" validate:"omitempty,max=10,dive"`
}

// RefundTier grants RefundFraction of the paid amount when cancelling at least HoursBefore hours ahead of start.
type RefundTier struct {
	HoursBefore    float64 `json:"hours_before" bson:"hours_before" validate:"gte=0"`
	RefundFraction float64 `json:"refund_fraction" bson:"refund_fraction" validate:"gte=0,lte=1"`
}

type CourtUpdate struct {
	Name           string                    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description    *string                   `json:"description,omitempty" validate:"omitempty,max=500"`
	Type           string                    `json:"type,omitempty" validate:"omitempty,oneof=indoor outdoor"`
	Status         CourtStatus               `json:"status,omitempty" validate:"omitempty,oneof=active maintenance closed reserved"`
	TimeZone       string                    `json:"time_zone,omitempty" validate:"omitempty,timezone"`
	Pricing        *CourtPricing             `json:"pricing,omitempty"`
	PeakHours      *[]PeakRule               `json:"peak_hours,omitempty" validate:"omitempty,max=20,dive"`
	OperatingHours map[string]OperatingHours `json:"operating_hours,omitempty" validate:"omitempty,max=7,dive,keys,weekday_name,endkeys"`
	Equipment      *EquipmentRates           `json:"equipment,omitempty"`
	BookingRules   *BookingRules             `json:"booking_rules,omitempty"`
	Version        int64                     `json:"version,omitempty" validate:"omitempty,gte=1"`
}

// locations caches resolved zones by name; time.LoadLocation reads the zone database on
// every call.
var locations sync.Map

// Location resolves the court's time zone, falling back to UTC on an unknown zone.
func (c *Court) Location() *time.Location {
	return LoadLocation(c.TimeZone)
}

// LoadLocation resolves an IANA zone name once per process. Empty or unknown names give UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	actual, _ := locations.LoadOrStore(name, loc)
	return actual.(*time.Location)
}

// HoursFor returns the operating hours for a weekday; an unlisted day is closed.
func (c *Court) HoursFor(day time.Weekday) OperatingHours {
	if h, ok := c.OperatingHours[WeekdayName(day)]; ok {
		return h
	}
	return OperatingHours{}
}

func (c *Court) IsBookable() bool {
	return c.Status == CourtActive
}

func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// EndOfDay is "24:00", accepted as a closing or end time meaning the following midnight.
const EndOfDay = "24:00"

// ClockMinutes parses "HH:MM" into minutes since midnight. "24:00" is 1440.
func ClockMinutes(hhmm string) (int, bool) {
	if hhmm == EndOfDay {
		return 24 * 60, true
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// DefaultCancellationPolicy refunds everything from 24h ahead and half from 12h ahead.
func DefaultCancellationPolicy() []RefundTier {
	return []RefundTier{
		{HoursBefore: 24, RefundFraction: 1},
		{HoursBefore: 12, RefundFraction: 0.5},
	}
}
