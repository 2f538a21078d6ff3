package model

import "time"

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipCancelled MembershipStatus = "cancelled"
	MembershipFrozen    MembershipStatus = "frozen"
)

type Membership struct {
	ID           string           `json:"id,omitempty" bson:"_id,omitempty"`
	UserID       string           `json:"user_id" bson:"user_id"`
	PlanName     string           `json:"plan_name" bson:"plan_name"`
	Status       MembershipStatus `json:"status" bson:"status"`
	StartDate    time.Time        `json:"start_date" bson:"start_date"`
	EndDate      time.Time        `json:"end_date" bson:"end_date"`
	Frozen       bool             `json:"frozen" bson:"frozen"`
	DiscountRate *float64         `json:"discount_rate,omitempty" bson:"discount_rate,omitempty"`
}

func (m *Membership) IsValid(at time.Time) bool {
	if m == nil || m.Status != MembershipActive || m.Frozen {
		return false
	}
	return !at.Before(m.StartDate) && at.Before(m.EndDate)
}

func (m *Membership) DaysRemaining(at time.Time) int {
	if !m.IsValid(at) {
		return 0
	}
	return int(m.EndDate.Sub(at).Hours() / 24)
}
