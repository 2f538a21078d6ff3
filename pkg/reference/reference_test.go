package reference

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"
)

var bookingRef = regexp.MustCompile(`^TRK-[0-9A-Z]+-[0-9A-Z]{4}$`)

func TestGenerator_BookingFormat(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 50; i++ {
		ref := g.Booking()
		if !bookingRef.MatchString(ref) {
			t.Fatalf("reference %q does not match format", ref)
		}
	}
}

func TestGenerator_EncodesTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	g := NewGeneratorWithClock(func() time.Time { return now })

	parts := strings.Split(g.Payment(), "-")
	if len(parts) != 3 || parts[0] != PaymentPrefix {
		t.Fatalf("unexpected payment reference parts %v", parts)
	}
	ms, err := strconv.ParseInt(strings.ToLower(parts[1]), 36, 64)
	if err != nil {
		t.Fatalf("timestamp segment is not base36: %v", err)
	}
	if ms != now.UnixMilli() {
		t.Errorf("decoded %d, want %d", ms, now.UnixMilli())
	}
}

func TestGenerator_Distinct(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	g := NewGeneratorWithClock(func() time.Time { return now })

	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		seen[g.Booking()] = struct{}{}
	}
	// 36^4 suffixes in the same millisecond; a handful of collisions would still leave most distinct.
	if len(seen) < 190 {
		t.Errorf("only %d distinct references out of 200", len(seen))
	}
}
