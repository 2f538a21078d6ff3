// Package availability decides whether a court can take a booking for [start, end).
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtbook/pkg/model"
)

type Reason string

const (
	CourtInactive         Reason = "COURT_INACTIVE"
	InvalidInterval       Reason = "INVALID_INTERVAL"
	InPast                Reason = "IN_PAST"
	TooFarAhead           Reason = "TOO_FAR_AHEAD"
	DurationOutOfRange    Reason = "DURATION_OUT_OF_RANGE"
	OutsideOperatingHours Reason = "OUTSIDE_OPERATING_HOURS"
	SlotConflict          Reason = "SLOT_CONFLICT"
)

// Conflict identifies a booking holding part of the requested slot without exposing its owner.
type Conflict struct {
	BookingID string              `json:"booking_id"`
	Reference string              `json:"reference"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Status    model.BookingStatus `json:"status"`
}

type Rejection struct {
	Reason    Reason     `json:"reason"`
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	ok := errors.As(err, &rejection)
	return rejection, ok
}

type BookingFinder interface {
	FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error)
}

type Checker struct {
	bookings BookingFinder
	nowFn    func() time.Time
}

func NewChecker(bookings BookingFinder) *Checker {
	return NewCheckerWithClock(bookings, time.Now)
}

func NewCheckerWithClock(bookings BookingFinder, nowFn func() time.Time) *Checker {
	return &Checker{bookings: bookings, nowFn: nowFn}
}

// Check returns nil when the slot is free, a *Rejection when a rule refuses it, and any
// other error when the store could not be queried. Rules run in a fixed order; the first
// failing rule is reported.
func (c *Checker) Check(ctx context.Context, court *model.Court, start, end time.Time, excludeID string) error {
	if rejection := c.checkRules(court, start, end); rejection != nil {
		return rejection
	}

	existing, err := c.bookings.FindOverlapping(ctx, court.ID, start, end, excludeID)
	if err != nil {
		return err
	}

	if conflicts := Conflicts(existing, start, end, excludeID); len(conflicts) > 0 {
		return &Rejection{
			Reason:    SlotConflict,
			Message:   "the requested time overlaps an existing booking",
			Conflicts: conflicts,
		}
	}
	return nil
}

// Conflicts keeps the slot-holding bookings in existing that overlap [start, end).
func Conflicts(existing []*model.Booking, start, end time.Time, excludeID string) []Conflict {
	var conflicts []Conflict
	for _, b := range existing {
		if b.ID == excludeID || !b.Status.IsActive() || !b.Overlaps(start, end) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			BookingID: b.ID,
			Reference: b.Reference,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Status:    b.Status,
		})
	}
	return conflicts
}

func (c *Checker) checkRules(court *model.Court, start, end time.Time) *Rejection {
	if !court.IsBookable() {
		return &Rejection{Reason: CourtInactive, Message: fmt.Sprintf("court is %s", court.Status)}
	}
	if !end.After(start) {
		return &Rejection{Reason: InvalidInterval, Message: "end time must be after start time"}
	}

	now := c.nowFn()
	if start.Before(now) {
		return &Rejection{Reason: InPast, Message: "cannot book a time in the past"}
	}

	rules := court.BookingRules
	if rules.AdvanceBookingDays > 0 && start.After(now.AddDate(0, 0, rules.AdvanceBookingDays)) {
		return &Rejection{
			Reason:  TooFarAhead,
			Message: fmt.Sprintf("bookings open at most %d days ahead", rules.AdvanceBookingDays),
		}
	}

	duration := end.Sub(start)
	minDuration := time.Duration(rules.MinDurationMinutes) * time.Minute
	maxDuration := time.Duration(rules.MaxDurationMinutes) * time.Minute
	if duration < minDuration || (maxDuration > 0 && duration > maxDuration) {
		return &Rejection{
			Reason: DurationOutOfRange,
			Message: fmt.Sprintf("duration must be between %d and %d minutes",
				rules.MinDurationMinutes, rules.MaxDurationMinutes),
		}
	}

	if day, ok := withinOperatingHours(court, start, end); !ok {
		return &Rejection{
			Reason:  OutsideOperatingHours,
			Message: fmt.Sprintf("requested time is outside operating hours on %s", day),
		}
	}
	return nil
}

// withinOperatingHours checks every local calendar day the interval touches. The part
// of the interval on each day must sit fully inside that day's open window.
func withinOperatingHours(court *model.Court, start, end time.Time) (string, bool) {
	loc := court.Location()
	cur := start.In(loc)
	end = end.In(loc)

	for cur.Before(end) {
		y, m, d := cur.Date()
		nextDay := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		portionEnd := end
		if nextDay.Before(end) {
			portionEnd = nextDay
		}

		day := model.WeekdayName(cur.Weekday())
		hours := court.HoursFor(cur.Weekday())
		if !hours.IsOpen {
			return day, false
		}
		open, okOpen := model.ClockMinutes(hours.Open)
		closing, okClose := model.ClockMinutes(hours.Close)
		if !okOpen || !okClose {
			return day, false
		}

		openAt := time.Date(y, m, d, open/60, open%60, 0, 0, loc)
		closeAt := time.Date(y, m, d, closing/60, closing%60, 0, 0, loc)
		if cur.Before(openAt) || portionEnd.After(closeAt) {
			return day, false
		}
		cur = nextDay
	}
	return "", true
}
