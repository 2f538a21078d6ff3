// Package pricing turns a court's rate card into an itemised price for a requested interval.
// Everything here is pure: identical inputs give identical output.
package pricing

import (
	"errors"
	"time"

	"courtbook/pkg/model"

	"github.com/shopspring/decimal"
)

var (
	ErrMissingCourt       = errors.New("court is required")
	ErrInvalidInterval    = errors.New("end time must be after start time")
	ErrNegativeRate       = errors.New("resolved rate is negative")
	ErrNegativeTotal      = errors.New("price breakdown is inconsistent")
	ErrEquipmentExclusive = errors.New("equipment set and individual items are mutually exclusive")
)

var (
	secondsPerHour = decimal.NewFromInt(3600)
)

// Quote is one pricing request. At is the instant membership validity is tested against.
type Quote struct {
	Court      *model.Court
	Start      time.Time
	End        time.Time
	Membership *model.Membership
	Equipment  model.EquipmentSelection
	At         time.Time
}

type Calculator struct {
	defaultCurrency string
}

func NewCalculator(defaultCurrency string) *Calculator {
	return &Calculator{defaultCurrency: defaultCurrency}
}

func (c *Calculator) Price(q Quote) (*model.PriceBreakdown, error) {
	if q.Court == nil {
		return nil, ErrMissingCourt
	}
	if !q.End.After(q.Start) {
		return nil, ErrInvalidInterval
	}

	segments, courtFee, err := courtSegments(q.Court, q.Start, q.End)
	if err != nil {
		return nil, err
	}

	equipmentFee, err := equipmentFee(q.Court.Equipment, q.Equipment)
	if err != nil {
		return nil, err
	}

	breakdown := &model.PriceBreakdown{
		CourtFee:     courtFee,
		EquipmentFee: model.MoneyFromDecimal(equipmentFee),
		Currency:     q.Court.Pricing.Currency,
		Segments:     segments,
	}
	if breakdown.Currency == "" {
		breakdown.Currency = c.defaultCurrency
	}
	breakdown.Subtotal = breakdown.CourtFee + breakdown.EquipmentFee

	if q.Membership.IsValid(q.At) {
		rate := q.Court.Pricing.MemberDiscount
		if q.Membership.DiscountRate != nil {
			rate = *q.Membership.DiscountRate
		}
		if rate < 0 {
			return nil, ErrNegativeRate
		}
		breakdown.Discount = model.Discount{
			Amount: model.MoneyFromDecimal(breakdown.Subtotal.Decimal().Mul(decimal.NewFromFloat(rate))),
			Type:   model.DiscountMembership,
			Rate:   rate,
		}
	}

	if q.Court.Pricing.TaxRate < 0 {
		return nil, ErrNegativeRate
	}
	taxable := breakdown.Subtotal - breakdown.Discount.Amount
	breakdown.Tax = model.Tax{
		Amount: model.MoneyFromDecimal(taxable.Decimal().Mul(decimal.NewFromFloat(q.Court.Pricing.TaxRate))),
		Rate:   q.Court.Pricing.TaxRate,
	}

	// Composed from the rounded parts so the displayed figures always add up.
	breakdown.Total = breakdown.Subtotal - breakdown.Discount.Amount + breakdown.Tax.Amount
	if !breakdown.Consistent() {
		return nil, ErrNegativeTotal
	}
	return breakdown, nil
}

// courtSegments prices each rate segment. The court fee is the rounded exact total and the
// rounding remainder lands on the last segment, so the segment fees add up to the court fee.
func courtSegments(court *model.Court, start, end time.Time) ([]model.PriceSegment, model.Money, error) {
	loc := court.Location()
	total := decimal.Zero
	var segments []model.PriceSegment
	var assigned model.Money

	cur := start.In(loc)
	end = end.In(loc)
	for cur.Before(end) {
		next := nextBoundary(court.PeakHours, cur, end)

		rate, multiplier, weekend, err := resolveRate(court, cur, next)
		if err != nil {
			return nil, 0, err
		}

		hourly := rate.Mul(decimal.NewFromFloat(multiplier))
		fee := hourly.Mul(decimal.NewFromFloat(next.Sub(cur).Seconds())).Div(secondsPerHour)
		total = total.Add(fee)

		segment := model.PriceSegment{
			Start:      cur,
			End:        next,
			HourlyRate: model.MoneyFromDecimal(hourly),
			Multiplier: multiplier,
			Weekend:    weekend,
			Fee:        model.MoneyFromDecimal(fee),
		}
		assigned += segment.Fee
		segments = append(segments, segment)
		cur = next
	}

	courtFee := model.MoneyFromDecimal(total)
	if n := len(segments); n > 0 {
		segments[n-1].Fee += courtFee - assigned
	}
	return segments, courtFee, nil
}

// nextBoundary is the earliest of: the next local hour, the next peak rule edge, end.
func nextBoundary(rules []model.PeakRule, cur, end time.Time) time.Time {
	y, m, d := cur.Date()
	next := time.Date(y, m, d, cur.Hour()+1, 0, 0, 0, cur.Location())

	for _, rule := range rules {
		for _, edge := range []string{rule.Start, rule.End} {
			minutes, ok := model.ClockMinutes(edge)
			if !ok {
				continue
			}
			at := time.Date(y, m, d, minutes/60, minutes%60, 0, 0, cur.Location())
			if at.After(cur) && at.Before(next) {
				next = at
			}
		}
	}

	if end.Before(next) {
		return end
	}
	return next
}

func resolveRate(court *model.Court, segStart, segEnd time.Time) (decimal.Decimal, float64, bool, error) {
	day := segStart.Weekday()
	weekend := day == time.Saturday || day == time.Sunday

	rate := court.Pricing.BaseRate
	if weekend && court.Pricing.WeekendRate != nil {
		rate = *court.Pricing.WeekendRate
	}
	if rate < 0 {
		return decimal.Zero, 0, false, ErrNegativeRate
	}

	multiplier := 1.0
	if rule, ok := matchPeak(court.PeakHours, segStart, segEnd); ok {
		multiplier = rule.Multiplier
	}
	if multiplier < 0 {
		return decimal.Zero, 0, false, ErrNegativeRate
	}
	return decimal.NewFromFloat(rate), multiplier, weekend, nil
}

// matchPeak returns the first rule, in declaration order, covering the segment's weekday and clock window.
func matchPeak(rules []model.PeakRule, segStart, segEnd time.Time) (model.PeakRule, bool) {
	from := segStart.Hour()*60 + segStart.Minute()
	to := from + int(segEnd.Sub(segStart).Minutes())
	if segEnd.Sub(segStart)%time.Minute != 0 {
		to++
	}

	for _, rule := range rules {
		if !containsDay(rule.Days, segStart.Weekday()) {
			continue
		}
		ruleStart, ok1 := model.ClockMinutes(rule.Start)
		ruleEnd, ok2 := model.ClockMinutes(rule.End)
		if !ok1 || !ok2 {
			continue
		}
		if from < ruleEnd && to > ruleStart {
			return rule, true
		}
	}
	return model.PeakRule{}, false
}

func containsDay(days []int, day time.Weekday) bool {
	for _, d := range days {
		if d == int(day) {
			return true
		}
	}
	return false
}

func equipmentFee(rates model.EquipmentRates, sel model.EquipmentSelection) (decimal.Decimal, error) {
	if sel.Set && sel.Itemised() {
		return decimal.Zero, ErrEquipmentExclusive
	}
	if rates.SetRate < 0 || rates.RacketRate < 0 || rates.BallRate < 0 {
		return decimal.Zero, ErrNegativeRate
	}
	if sel.Rackets < 0 || sel.Balls < 0 {
		return decimal.Zero, ErrNegativeRate
	}

	if sel.Set {
		return decimal.NewFromFloat(rates.SetRate), nil
	}
	rackets := decimal.NewFromFloat(rates.RacketRate).Mul(decimal.NewFromInt(int64(sel.Rackets)))
	balls := decimal.NewFromFloat(rates.BallRate).Mul(decimal.NewFromInt(int64(sel.Balls)))
	return rackets.Add(balls), nil
}
