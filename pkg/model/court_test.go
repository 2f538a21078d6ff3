package model

import (
	"testing"
	"time"
)

func TestClockMinutes(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{in: "00:00", want: 0, wantOK: true},
		{in: "06:30", want: 390, wantOK: true},
		{in: "23:59", want: 1439, wantOK: true},
		{in: "24:00", want: 1440, wantOK: true},
		{in: "24:01", wantOK: false},
		{in: "25:00", wantOK: false},
		{in: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ClockMinutes(tt.in)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("ClockMinutes(%q) = %d, %v, want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCourtLocation(t *testing.T) {
	hk := &Court{TimeZone: "Asia/Hong_Kong"}
	first := hk.Location()
	if first.String() != "Asia/Hong_Kong" {
		t.Fatalf("Location() = %s", first)
	}
	if again := hk.Location(); again != first {
		t.Error("a zone should be resolved once and reused")
	}

	for _, tz := range []string{"", "Mars/Olympus"} {
		if got := (&Court{TimeZone: tz}).Location(); got != time.UTC {
			t.Errorf("Location() for %q = %s, want UTC", tz, got)
		}
	}
}
