package pricing

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"courtbook/pkg/model"
)

var shanghai = mustLocation("Asia/Shanghai")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func float(v float64) *float64 {
	return &v
}

// 2026-03-02 is a Monday, 2026-03-07 a Saturday.
func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, shanghai)
}

func testCourt() *model.Court {
	return &model.Court{
		Code:     "A1",
		TimeZone: "Asia/Shanghai",
		Status:   model.CourtActive,
		Pricing: model.CourtPricing{
			BaseRate:       100,
			MemberDiscount: 0.1,
			Currency:       "CNY",
		},
		Equipment: model.EquipmentRates{
			RacketRate: 20,
			BallRate:   10,
			SetRate:    60,
		},
	}
}

func TestCalculator_Price_CourtFee(t *testing.T) {
	weekday := []int{1, 2, 3, 4, 5}

	tests := []struct {
		name         string
		modify       func(c *model.Court)
		start        time.Time
		end          time.Time
		wantCourtFee model.Money
		wantSegments int
	}{
		{
			name:         "two plain hours",
			start:        at(2, 10, 0),
			end:          at(2, 12, 0),
			wantCourtFee: 20000,
			wantSegments: 2,
		},
		{
			name:         "half hour",
			start:        at(2, 10, 0),
			end:          at(2, 10, 30),
			wantCourtFee: 5000,
			wantSegments: 1,
		},
		{
			name:         "unaligned start splits at the hour",
			start:        at(2, 10, 30),
			end:          at(2, 12, 0),
			wantCourtFee: 15000,
			wantSegments: 2,
		},
		{
			name: "peak multiplies the second hour",
			modify: func(c *model.Court) {
				c.PeakHours = []model.PeakRule{{Start: "18:00", End: "21:00", Days: weekday, Multiplier: 1.5}}
			},
			start:        at(2, 17, 0),
			end:          at(2, 19, 0),
			wantCourtFee: 25000,
			wantSegments: 2,
		},
		{
			name: "peak edge inside an hour splits the segment",
			modify: func(c *model.Court) {
				c.PeakHours = []model.PeakRule{{Start: "18:30", End: "20:00", Days: weekday, Multiplier: 2}}
			},
			start:        at(2, 18, 0),
			end:          at(2, 19, 0),
			wantCourtFee: 15000,
			wantSegments: 2,
		},
		{
			name: "first matching peak rule wins",
			modify: func(c *model.Court) {
				c.PeakHours = []model.PeakRule{
					{Start: "18:00", End: "20:00", Days: weekday, Multiplier: 1.2},
					{Start: "18:00", End: "19:00", Days: weekday, Multiplier: 2},
				}
			},
			start:        at(2, 18, 0),
			end:          at(2, 19, 0),
			wantCourtFee: 12000,
			wantSegments: 1,
		},
		{
			name: "peak rule for other days is ignored",
			modify: func(c *model.Court) {
				c.PeakHours = []model.PeakRule{{Start: "18:00", End: "21:00", Days: []int{0, 6}, Multiplier: 1.5}}
			},
			start:        at(2, 18, 0),
			end:          at(2, 19, 0),
			wantCourtFee: 10000,
			wantSegments: 1,
		},
		{
			name: "weekend rate replaces base rate",
			modify: func(c *model.Court) {
				c.Pricing.WeekendRate = float(150)
			},
			start:        at(7, 10, 0),
			end:          at(7, 11, 0),
			wantCourtFee: 15000,
			wantSegments: 1,
		},
		{
			name: "weekend rate is multiplied by weekend peak",
			modify: func(c *model.Court) {
				c.Pricing.WeekendRate = float(150)
				c.PeakHours = []model.PeakRule{{Start: "10:00", End: "12:00", Days: []int{0, 6}, Multiplier: 1.5}}
			},
			start:        at(7, 10, 0),
			end:          at(7, 11, 0),
			wantCourtFee: 22500,
			wantSegments: 1,
		},
		{
			name:         "weekend rate unset keeps base rate",
			start:        at(8, 9, 0),
			end:          at(8, 10, 0),
			wantCourtFee: 10000,
			wantSegments: 1,
		},
		{
			name: "weekday uses base even when weekend rate is set",
			modify: func(c *model.Court) {
				c.Pricing.WeekendRate = float(150)
			},
			start:        at(2, 9, 0),
			end:          at(2, 10, 0),
			wantCourtFee: 10000,
			wantSegments: 1,
		},
		{
			name: "crossing midnight into the weekend",
			modify: func(c *model.Court) {
				c.Pricing.WeekendRate = float(200)
			},
			start:        at(6, 23, 0),
			end:          at(7, 1, 0),
			wantCourtFee: 30000,
			wantSegments: 2,
		},
		{
			name: "fractional rate rounds half up",
			modify: func(c *model.Court) {
				c.Pricing.BaseRate = 10.005
			},
			start:        at(2, 10, 0),
			end:          at(2, 11, 0),
			wantCourtFee: 1001,
			wantSegments: 1,
		},
		{
			name:         "interval given in UTC is rated in the court zone",
			modify:       func(c *model.Court) { c.PeakHours = []model.PeakRule{{Start: "18:00", End: "19:00", Days: weekday, Multiplier: 2}} },
			start:        at(2, 18, 0).UTC(),
			end:          at(2, 19, 0).UTC(),
			wantCourtFee: 20000,
			wantSegments: 1,
		},
	}

	calc := NewCalculator("CNY")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			court := testCourt()
			if tt.modify != nil {
				tt.modify(court)
			}

			got, err := calc.Price(Quote{Court: court, Start: tt.start, End: tt.end, At: tt.start})
			if err != nil {
				t.Fatalf("Price() error = %v", err)
			}
			if got.CourtFee != tt.wantCourtFee {
				t.Errorf("CourtFee = %s, want %s", got.CourtFee, tt.wantCourtFee)
			}
			if len(got.Segments) != tt.wantSegments {
				t.Errorf("segments = %d, want %d", len(got.Segments), tt.wantSegments)
			}
			if got.Total != got.CourtFee {
				t.Errorf("Total = %s, want %s with no extras", got.Total, got.CourtFee)
			}
		})
	}
}

func TestCalculator_Price_SegmentFeesAddUp(t *testing.T) {
	court := testCourt()
	// Edges at :20 and :40 split the hour into three equal thirds of 33.333...
	court.PeakHours = []model.PeakRule{
		{Start: "10:20", End: "10:40", Days: []int{1}, Multiplier: 1},
	}

	got, err := NewCalculator("CNY").Price(Quote{Court: court, Start: at(2, 10, 0), End: at(2, 11, 0), At: at(2, 9, 0)})
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if got.CourtFee != 10000 {
		t.Errorf("CourtFee = %s, want 100.00", got.CourtFee)
	}
	want := []model.Money{3333, 3333, 3334}
	if len(got.Segments) != len(want) {
		t.Fatalf("segments = %d, want %d", len(got.Segments), len(want))
	}
	var sum model.Money
	for i, seg := range got.Segments {
		if seg.Fee != want[i] {
			t.Errorf("segment %d fee = %s, want %s", i, seg.Fee, want[i])
		}
		sum += seg.Fee
	}
	if sum != got.CourtFee {
		t.Errorf("segment fees add up to %s, court fee is %s", sum, got.CourtFee)
	}
}

func TestCalculator_Price_TwoHourScenario(t *testing.T) {
	got, err := NewCalculator("CNY").Price(Quote{
		Court: testCourt(),
		Start: at(2, 10, 0),
		End:   at(2, 12, 0),
		At:    at(1, 9, 0),
	})
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if got.Total.String() != "200.00" {
		t.Errorf("Total = %s, want 200.00", got.Total)
	}
	if got.Currency != "CNY" {
		t.Errorf("Currency = %s, want CNY", got.Currency)
	}
	if got.Discount.Type != model.DiscountNone || got.Discount.Amount != 0 {
		t.Errorf("unexpected discount %+v", got.Discount)
	}
}

func TestCalculator_Price_EquipmentMembershipTax(t *testing.T) {
	activeMember := &model.Membership{
		Status:    model.MembershipActive,
		StartDate: at(1, 0, 0),
		EndDate:   at(31, 0, 0),
	}

	tests := []struct {
		name          string
		equipment     model.EquipmentSelection
		membership    *model.Membership
		taxRate       float64
		wantEquipment model.Money
		wantDiscount  model.Money
		wantTax       model.Money
		wantTotal     model.Money
		wantType      model.DiscountType
	}{
		{
			name:          "itemised equipment",
			equipment:     model.EquipmentSelection{Rackets: 2, Balls: 1},
			wantEquipment: 5000,
			wantTotal:     15000,
		},
		{
			name:          "equipment set",
			equipment:     model.EquipmentSelection{Set: true},
			wantEquipment: 6000,
			wantTotal:     16000,
		},
		{
			name:          "court member discount applies to combined subtotal",
			equipment:     model.EquipmentSelection{Rackets: 2, Balls: 1},
			membership:    activeMember,
			wantEquipment: 5000,
			wantDiscount:  1500,
			wantTotal:     13500,
			wantType:      model.DiscountMembership,
		},
		{
			name:          "tax on post discount subtotal",
			equipment:     model.EquipmentSelection{Rackets: 2, Balls: 1},
			membership:    activeMember,
			taxRate:       0.06,
			wantEquipment: 5000,
			wantDiscount:  1500,
			wantTax:       810,
			wantTotal:     14310,
			wantType:      model.DiscountMembership,
		},
		{
			name:      "membership own rate overrides court rate",
			equipment: model.EquipmentSelection{Rackets: 2, Balls: 1},
			membership: &model.Membership{
				Status:       model.MembershipActive,
				StartDate:    at(1, 0, 0),
				EndDate:      at(31, 0, 0),
				DiscountRate: float(0.15),
			},
			taxRate:       0.06,
			wantEquipment: 5000,
			wantDiscount:  2250,
			wantTax:       765,
			wantTotal:     13515,
			wantType:      model.DiscountMembership,
		},
		{
			name: "expired membership gets no discount",
			membership: &model.Membership{
				Status:    model.MembershipActive,
				StartDate: at(1, 0, 0).AddDate(-1, 0, 0),
				EndDate:   at(1, 0, 0),
			},
			wantTotal: 10000,
		},
		{
			name: "frozen membership gets no discount",
			membership: &model.Membership{
				Status:    model.MembershipActive,
				Frozen:    true,
				StartDate: at(1, 0, 0),
				EndDate:   at(31, 0, 0),
			},
			wantTotal: 10000,
		},
	}

	calc := NewCalculator("CNY")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			court := testCourt()
			court.Pricing.TaxRate = tt.taxRate

			got, err := calc.Price(Quote{
				Court:      court,
				Start:      at(2, 10, 0),
				End:        at(2, 11, 0),
				Membership: tt.membership,
				Equipment:  tt.equipment,
				At:         at(2, 9, 0),
			})
			if err != nil {
				t.Fatalf("Price() error = %v", err)
			}
			if got.EquipmentFee != tt.wantEquipment {
				t.Errorf("EquipmentFee = %s, want %s", got.EquipmentFee, tt.wantEquipment)
			}
			if got.Discount.Amount != tt.wantDiscount || got.Discount.Type != tt.wantType {
				t.Errorf("Discount = %+v, want %s %q", got.Discount, tt.wantDiscount, tt.wantType)
			}
			if got.Tax.Amount != tt.wantTax {
				t.Errorf("Tax = %s, want %s", got.Tax.Amount, tt.wantTax)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("Total = %s, want %s", got.Total, tt.wantTotal)
			}
			if !got.Consistent() {
				t.Errorf("breakdown not consistent: %+v", got)
			}
		})
	}
}

func TestCalculator_Price_Errors(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(c *model.Court)
		start     time.Time
		end       time.Time
		equipment model.EquipmentSelection
		court     bool
		wantErr   error
	}{
		{name: "end equals start", start: at(2, 10, 0), end: at(2, 10, 0), wantErr: ErrInvalidInterval},
		{name: "end before start", start: at(2, 11, 0), end: at(2, 10, 0), wantErr: ErrInvalidInterval},
		{
			name:    "negative base rate",
			modify:  func(c *model.Court) { c.Pricing.BaseRate = -1 },
			start:   at(2, 10, 0),
			end:     at(2, 11, 0),
			wantErr: ErrNegativeRate,
		},
		{
			name:    "negative weekend rate",
			modify:  func(c *model.Court) { c.Pricing.WeekendRate = float(-5) },
			start:   at(7, 10, 0),
			end:     at(7, 11, 0),
			wantErr: ErrNegativeRate,
		},
		{
			name:    "negative equipment rate",
			modify:  func(c *model.Court) { c.Equipment.BallRate = -1 },
			start:   at(2, 10, 0),
			end:     at(2, 11, 0),
			wantErr: ErrNegativeRate,
		},
		{
			name:      "set and items together",
			start:     at(2, 10, 0),
			end:       at(2, 11, 0),
			equipment: model.EquipmentSelection{Set: true, Rackets: 1},
			wantErr:   ErrEquipmentExclusive,
		},
	}

	calc := NewCalculator("CNY")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			court := testCourt()
			if tt.modify != nil {
				tt.modify(court)
			}
			_, err := calc.Price(Quote{Court: court, Start: tt.start, End: tt.end, Equipment: tt.equipment})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Price() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := calc.Price(Quote{Start: at(2, 10, 0), End: at(2, 11, 0)}); !errors.Is(err, ErrMissingCourt) {
		t.Errorf("Price() without court error = %v, want %v", err, ErrMissingCourt)
	}
}

func TestCalculator_Price_DiscountAboveSubtotalIsInconsistent(t *testing.T) {
	_, err := NewCalculator("CNY").Price(Quote{
		Court: testCourt(),
		Start: at(2, 10, 0),
		End:   at(2, 11, 0),
		Membership: &model.Membership{
			Status:       model.MembershipActive,
			StartDate:    at(1, 0, 0),
			EndDate:      at(31, 0, 0),
			DiscountRate: float(1.5),
		},
		At: at(2, 9, 0),
	})
	if !errors.Is(err, ErrNegativeTotal) {
		t.Errorf("Price() error = %v, want %v", err, ErrNegativeTotal)
	}
}

func TestCalculator_Price_Deterministic(t *testing.T) {
	court := testCourt()
	court.Pricing.WeekendRate = float(120)
	court.Pricing.TaxRate = 0.13
	court.PeakHours = []model.PeakRule{{Start: "18:15", End: "21:45", Days: []int{5, 6}, Multiplier: 1.35}}
	q := Quote{
		Court:     court,
		Start:     at(6, 17, 40),
		End:       at(6, 20, 10),
		Equipment: model.EquipmentSelection{Rackets: 3, Balls: 7},
		Membership: &model.Membership{
			Status:    model.MembershipActive,
			StartDate: at(1, 0, 0),
			EndDate:   at(31, 0, 0),
		},
		At: at(6, 9, 0),
	}

	calc := NewCalculator("CNY")
	first, err := calc.Price(q)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	second, err := calc.Price(q)
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical quotes produced different breakdowns")
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("encoded breakdowns differ:\n%s\n%s", a, b)
	}
	if !first.Consistent() {
		t.Errorf("breakdown not consistent: %+v", first)
	}
}
