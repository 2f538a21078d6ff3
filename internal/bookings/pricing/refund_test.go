package pricing

import (
	"testing"
	"time"

	"courtbook/pkg/model"
)

func TestRefundFor_DefaultTiers(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	paid := model.Money(20000)

	tests := []struct {
		name         string
		before       time.Duration
		wantFraction float64
		wantAmount   model.Money
	}{
		{"48h", 48 * time.Hour, 1, 20000},
		{"exactly 24h", 24 * time.Hour, 1, 20000},
		{"23h59m", 23*time.Hour + 59*time.Minute, 0.5, 10000},
		{"exactly 12h", 12 * time.Hour, 0.5, 10000},
		{"11h59m", 11*time.Hour + 59*time.Minute, 0, 0},
		{"1h", time.Hour, 0, 0},
		{"after start", -time.Hour, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RefundFor(nil, paid, start.Add(-tt.before), start)
			if got.Fraction != tt.wantFraction {
				t.Errorf("Fraction = %v, want %v", got.Fraction, tt.wantFraction)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.wantAmount)
			}
			if got.Amount+got.Penalty != paid {
				t.Errorf("refund %s + penalty %s != paid %s", got.Amount, got.Penalty, paid)
			}
		})
	}
}

func TestRefundFor_CourtPolicy(t *testing.T) {
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	// Declared out of order on purpose.
	policy := []model.RefundTier{
		{HoursBefore: 2, RefundFraction: 0.25},
		{HoursBefore: 48, RefundFraction: 1},
		{HoursBefore: 6, RefundFraction: 0.75},
	}

	tests := []struct {
		name       string
		before     time.Duration
		paid       model.Money
		wantAmount model.Money
	}{
		{"two days", 48 * time.Hour, 10000, 10000},
		{"one day", 24 * time.Hour, 10000, 7500},
		{"three hours", 3 * time.Hour, 10000, 2500},
		{"one hour", time.Hour, 10000, 0},
		{"rounds half up", 3 * time.Hour, 10002, 2501},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RefundFor(policy, tt.paid, start.Add(-tt.before), start)
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.wantAmount)
			}
			if got.Penalty != tt.paid-tt.wantAmount {
				t.Errorf("Penalty = %s, want %s", got.Penalty, tt.paid-tt.wantAmount)
			}
		})
	}
}
