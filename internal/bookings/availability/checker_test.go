package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtbook/pkg/model"
)

type mockFinder struct {
	findFunc func(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error)
}

func (m *mockFinder) FindOverlapping(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, courtID, start, end, excludeID)
	}
	return nil, nil
}

var shanghai, _ = time.LoadLocation("Asia/Shanghai")

// Monday 2026-03-02 08:00 local.
var now = time.Date(2026, 3, 2, 8, 0, 0, 0, shanghai)

func local(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, shanghai)
}

func everyDay(open, closing string) map[string]model.OperatingHours {
	hours := map[string]model.OperatingHours{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		hours[model.WeekdayName(d)] = model.OperatingHours{Open: open, Close: closing, IsOpen: true}
	}
	return hours
}

func testCourt() *model.Court {
	return &model.Court{
		ID:             "court-1",
		Code:           "A1",
		Status:         model.CourtActive,
		TimeZone:       "Asia/Shanghai",
		OperatingHours: everyDay("07:00", "22:00"),
		BookingRules: model.BookingRules{
			AdvanceBookingDays: 30,
			MinDurationMinutes: 60,
			MaxDurationMinutes: 180,
		},
	}
}

func existing(id string, start, end time.Time, status model.BookingStatus) *model.Booking {
	return &model.Booking{ID: id, Reference: "TRK-" + id, StartTime: start, EndTime: end, Status: status}
}

func TestChecker_Check_Rules(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(c *model.Court)
		start      time.Time
		end        time.Time
		wantReason Reason
	}{
		{name: "available", start: local(2, 10, 0), end: local(2, 11, 0)},
		{
			name:       "maintenance court",
			modify:     func(c *model.Court) { c.Status = model.CourtMaintenance },
			start:      local(2, 10, 0),
			end:        local(2, 11, 0),
			wantReason: CourtInactive,
		},
		{
			name:       "inactive wins over bad interval",
			modify:     func(c *model.Court) { c.Status = model.CourtClosed },
			start:      local(2, 11, 0),
			end:        local(2, 10, 0),
			wantReason: CourtInactive,
		},
		{name: "end before start", start: local(2, 11, 0), end: local(2, 10, 0), wantReason: InvalidInterval},
		{name: "zero length", start: local(2, 11, 0), end: local(2, 11, 0), wantReason: InvalidInterval},
		{name: "in the past", start: local(2, 7, 0), end: local(2, 9, 0), wantReason: InPast},
		{name: "beyond advance window", start: local(2, 10, 0).AddDate(0, 0, 31), end: local(2, 11, 0).AddDate(0, 0, 31), wantReason: TooFarAhead},
		{name: "at advance window edge", start: now.AddDate(0, 0, 30), end: now.AddDate(0, 0, 30).Add(time.Hour)},
		{name: "too short", start: local(2, 10, 0), end: local(2, 10, 30), wantReason: DurationOutOfRange},
		{name: "too long", start: local(2, 10, 0), end: local(2, 13, 30), wantReason: DurationOutOfRange},
		{name: "max duration allowed", start: local(2, 10, 0), end: local(2, 13, 0)},
		{name: "before opening", start: local(2, 6, 30), end: local(2, 7, 30), wantReason: InPast},
		{name: "before opening tomorrow", start: local(3, 6, 30), end: local(3, 7, 30), wantReason: OutsideOperatingHours},
		{name: "past closing", start: local(2, 21, 30), end: local(2, 22, 30), wantReason: OutsideOperatingHours},
		{name: "ends at closing", start: local(2, 21, 0), end: local(2, 22, 0)},
		{
			name: "closed weekday",
			modify: func(c *model.Court) {
				c.OperatingHours["tuesday"] = model.OperatingHours{IsOpen: false}
			},
			start:      local(3, 10, 0),
			end:        local(3, 11, 0),
			wantReason: OutsideOperatingHours,
		},
		{
			name:       "missing weekday is closed",
			modify:     func(c *model.Court) { delete(c.OperatingHours, "tuesday") },
			start:      local(3, 10, 0),
			end:        local(3, 11, 0),
			wantReason: OutsideOperatingHours,
		},
		{
			name: "overnight span touches a closed portion",
			modify: func(c *model.Court) {
				c.OperatingHours = everyDay("00:00", "23:59")
			},
			start:      local(2, 23, 0),
			end:        local(3, 1, 0),
			wantReason: OutsideOperatingHours,
		},
		{
			name:   "open until midnight",
			modify: func(c *model.Court) { c.OperatingHours = everyDay("07:00", "24:00") },
			start:  local(2, 23, 0),
			end:    local(3, 0, 0),
		},
		{
			name:   "overnight span on round-the-clock hours",
			modify: func(c *model.Court) { c.OperatingHours = everyDay("00:00", "24:00") },
			start:  local(2, 23, 0),
			end:    local(3, 1, 0),
		},
		{
			name:   "hours evaluated in the court zone",
			start:  local(2, 21, 0).UTC(),
			end:    local(2, 22, 0).UTC(),
			modify: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			court := testCourt()
			if tt.modify != nil {
				tt.modify(court)
			}
			checker := NewCheckerWithClock(&mockFinder{}, func() time.Time { return now })

			err := checker.Check(context.Background(), court, tt.start, tt.end, "")
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("Check() error = %v, want available", err)
				}
				return
			}
			rejection, ok := AsRejection(err)
			if !ok {
				t.Fatalf("Check() error = %v, want rejection %s", err, tt.wantReason)
			}
			if rejection.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", rejection.Reason, tt.wantReason)
			}
		})
	}
}

func TestChecker_Check_Conflicts(t *testing.T) {
	tests := []struct {
		name         string
		stored       []*model.Booking
		start        time.Time
		end          time.Time
		excludeID    string
		wantConflict bool
	}{
		{
			name:   "back to back after existing",
			stored: []*model.Booking{existing("b1", local(2, 9, 0), local(2, 10, 0), model.BookingConfirmed)},
			start:  local(2, 10, 0),
			end:    local(2, 11, 0),
		},
		{
			name:   "back to back before existing",
			stored: []*model.Booking{existing("b1", local(2, 11, 0), local(2, 12, 0), model.BookingConfirmed)},
			start:  local(2, 10, 0),
			end:    local(2, 11, 0),
		},
		{
			name:         "one minute overlap with confirmed",
			stored:       []*model.Booking{existing("b1", local(2, 9, 0), local(2, 10, 1), model.BookingConfirmed)},
			start:        local(2, 10, 0),
			end:          local(2, 11, 0),
			wantConflict: true,
		},
		{
			name:         "pending holds the slot",
			stored:       []*model.Booking{existing("b1", local(2, 10, 0), local(2, 11, 0), model.BookingPending)},
			start:        local(2, 10, 0),
			end:          local(2, 11, 0),
			wantConflict: true,
		},
		{
			name:         "checked in holds the slot",
			stored:       []*model.Booking{existing("b1", local(2, 10, 30), local(2, 10, 45), model.BookingCheckedIn)},
			start:        local(2, 10, 0),
			end:          local(2, 11, 0),
			wantConflict: true,
		},
		{
			name:   "cancelled does not hold the slot",
			stored: []*model.Booking{existing("b1", local(2, 10, 0), local(2, 11, 0), model.BookingCancelled)},
			start:  local(2, 10, 0),
			end:    local(2, 11, 0),
		},
		{
			name:      "excluded booking does not conflict with itself",
			stored:    []*model.Booking{existing("b1", local(2, 10, 0), local(2, 11, 0), model.BookingPending)},
			start:     local(2, 10, 0),
			end:       local(2, 11, 0),
			excludeID: "b1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotExclude string
			finder := &mockFinder{findFunc: func(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
				gotExclude = excludeID
				return tt.stored, nil
			}}
			checker := NewCheckerWithClock(finder, func() time.Time { return now })

			err := checker.Check(context.Background(), testCourt(), tt.start, tt.end, tt.excludeID)
			if gotExclude != tt.excludeID {
				t.Errorf("store got excludeID %q, want %q", gotExclude, tt.excludeID)
			}
			if !tt.wantConflict {
				if err != nil {
					t.Fatalf("Check() error = %v, want available", err)
				}
				return
			}
			rejection, ok := AsRejection(err)
			if !ok || rejection.Reason != SlotConflict {
				t.Fatalf("Check() error = %v, want %s", err, SlotConflict)
			}
			if len(rejection.Conflicts) != 1 || rejection.Conflicts[0].BookingID != "b1" {
				t.Errorf("Conflicts = %+v", rejection.Conflicts)
			}
		})
	}
}

func TestChecker_Check_StoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	finder := &mockFinder{findFunc: func(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
		return nil, storeErr
	}}
	checker := NewCheckerWithClock(finder, func() time.Time { return now })

	err := checker.Check(context.Background(), testCourt(), local(2, 10, 0), local(2, 11, 0), "")
	if !errors.Is(err, storeErr) {
		t.Errorf("Check() error = %v, want %v", err, storeErr)
	}
	if _, ok := AsRejection(err); ok {
		t.Error("store failure must not be reported as a rejection")
	}
}

func TestChecker_Check_SkipsStoreWhenRulesFail(t *testing.T) {
	called := false
	finder := &mockFinder{findFunc: func(ctx context.Context, courtID string, start, end time.Time, excludeID string) ([]*model.Booking, error) {
		called = true
		return nil, nil
	}}
	checker := NewCheckerWithClock(finder, func() time.Time { return now })

	_ = checker.Check(context.Background(), testCourt(), local(2, 7, 0), local(2, 8, 0), "")
	if called {
		t.Error("store should not be queried when a rule already rejects")
	}
}
