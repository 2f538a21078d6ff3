package model

import "time"

type CreateBookingRequest struct {
	CourtID       string             `json:"court_id" validate:"required,mongodb"`
	UserID        string             `json:"user_id" validate:"required,min=1,max=64"`
	StartTime     time.Time          `json:"start_time" validate:"required"`
	EndTime       time.Time          `json:"end_time" validate:"required,gtfield=StartTime"`
	Equipment     EquipmentSelection `json:"equipment"`
	Contact       *Contact           `json:"contact,omitempty" validate:"omitempty"`
	Notes         string             `json:"notes,omitempty" validate:"max=500"`
	PaymentMethod PaymentMethod      `json:"payment_method" validate:"required,oneof=wechat_pay alipay credit_card cash member_credit"`
	PaymentToken  string             `json:"payment_token,omitempty" validate:"max=128"`
}

type QuoteRequest struct {
	CourtID   string             `json:"court_id" validate:"required,mongodb"`
	UserID    string             `json:"user_id,omitempty" validate:"max=64"`
	StartTime time.Time          `json:"start_time" validate:"required"`
	EndTime   time.Time          `json:"end_time" validate:"required,gtfield=StartTime"`
	Equipment EquipmentSelection `json:"equipment"`
}

type RetryPaymentRequest struct {
	PaymentToken string `json:"payment_token,omitempty" validate:"max=128"`
}

// RescheduleBookingRequest moves a booking to a new interval on the same court.
type RescheduleBookingRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type RefundPaymentRequest struct {
	Amount Money  `json:"amount" validate:"gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// GatewayResult is the outcome of a payment as reported by the gateway webhook or the payment results topic.
type GatewayResult struct {
	TransactionID string `json:"transaction_id" validate:"required,max=128"`
	Success       bool   `json:"success"`
	Amount        Money  `json:"amount" validate:"gte=0"`
	FailureReason string `json:"failure_reason,omitempty" validate:"max=500"`
}
