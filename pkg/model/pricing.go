package model

import "time"

type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountMembership DiscountType = "membership"
	DiscountPromo      DiscountType = "promo"
)

type PriceBreakdown struct {
	CourtFee     Money          `json:"court_fee" bson:"court_fee"`
	EquipmentFee Money          `json:"equipment_fee" bson:"equipment_fee"`
	Subtotal     Money          `json:"subtotal" bson:"subtotal"`
	Discount     Discount       `json:"discount" bson:"discount"`
	Tax          Tax            `json:"tax" bson:"tax"`
	Total        Money          `json:"total" bson:"total"`
	Currency     string         `json:"currency" bson:"currency"`
	Segments     []PriceSegment `json:"segments,omitempty" bson:"segments,omitempty"`
}

type Discount struct {
	Amount Money        `json:"amount" bson:"amount"`
	Type   DiscountType `json:"type,omitempty" bson:"type,omitempty"`
	Rate   float64      `json:"rate" bson:"rate"`
}

type Tax struct {
	Amount Money   `json:"amount" bson:"amount"`
	Rate   float64 `json:"rate" bson:"rate"`
}

// PriceSegment is one rated slice of the booked interval.
type PriceSegment struct {
	Start      time.Time `json:"start" bson:"start"`
	End        time.Time `json:"end" bson:"end"`
	HourlyRate Money     `json:"hourly_rate" bson:"hourly_rate"`
	Multiplier float64   `json:"multiplier" bson:"multiplier"`
	Weekend    bool      `json:"weekend" bson:"weekend"`
	Fee        Money     `json:"fee" bson:"fee"`
}

// Consistent reports whether total = subtotal - discount + tax and nothing is negative.
func (p PriceBreakdown) Consistent() bool {
	if p.CourtFee < 0 || p.EquipmentFee < 0 || p.Discount.Amount < 0 || p.Tax.Amount < 0 || p.Total < 0 {
		return false
	}
	if p.Subtotal != p.CourtFee+p.EquipmentFee {
		return false
	}
	return p.Total == p.Subtotal-p.Discount.Amount+p.Tax.Amount
}
