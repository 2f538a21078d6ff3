package model

import (
	"errors"
	"time"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

func (s PaymentStatus) IsSettled() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRefunded, PaymentPartiallyRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodWeChatPay    PaymentMethod = "wechat_pay"
	MethodAlipay       PaymentMethod = "alipay"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodCash         PaymentMethod = "cash"
	MethodMemberCredit PaymentMethod = "member_credit"
	MethodFree         PaymentMethod = "free"
)

// Online methods go through the payment gateway.
func (m PaymentMethod) Online() bool {
	return m == MethodWeChatPay || m == MethodAlipay || m == MethodCreditCard
}

var (
	ErrRefundNotAllowed  = errors.New("payment is not in a refundable state")
	ErrRefundExceedsPaid = errors.New("refund exceeds refundable amount")
	ErrRefundNotPending  = errors.New("no pending refund with that key")
)

// RefundPending marks a refund that has been reserved on the payment but not yet
// answered by the gateway.
const RefundPending = "pending"

type Payment struct {
	ID            string         `json:"id,omitempty" bson:"_id,omitempty"`
	Reference     string         `json:"reference" bson:"reference"`
	BookingID     string         `json:"booking_id" bson:"booking_id"`
	UserID        string         `json:"user_id" bson:"user_id"`
	Amount        PaymentAmount  `json:"amount" bson:"amount"`
	Method        PaymentMethod  `json:"method" bson:"method"`
	Status        PaymentStatus  `json:"status" bson:"status"`
	Gateway       GatewayDetails `json:"gateway" bson:"gateway"`
	Refunds       []RefundRecord `json:"refunds,omitempty" bson:"refunds,omitempty"`
	RefundedTotal Money          `json:"refunded_total" bson:"refunded_total"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	FailedAt      *time.Time     `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
	Version       int64          `json:"version" bson:"version"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" bson:"updated_at"`
}

type PaymentAmount struct {
	Original Money  `json:"original" bson:"original"`
	Final    Money  `json:"final" bson:"final"`
	Currency string `json:"currency" bson:"currency"`
}

type GatewayDetails struct {
	OrderReference string `json:"order_reference,omitempty" bson:"order_reference,omitempty"`
	TransactionID  string `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	FailureReason  string `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
}

type RefundRecord struct {
	// Key is the idempotency key sent to the gateway for this refund.
	Key         string     `json:"key,omitempty" bson:"key,omitempty"`
	RefundID    string     `json:"refund_id" bson:"refund_id"`
	Amount      Money      `json:"amount" bson:"amount"`
	Reason      string     `json:"reason" bson:"reason"`
	Status      string     `json:"status" bson:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

func (p *Payment) Refundable() Money {
	return p.Amount.Final - p.RefundedTotal
}

// ApplyRefund records a successful refund and moves the payment to refunded or partially_refunded.
func (p *Payment) ApplyRefund(refund RefundRecord) error {
	if p.Status != PaymentCompleted && p.Status != PaymentPartiallyRefunded {
		return ErrRefundNotAllowed
	}
	if refund.Amount <= 0 || refund.Amount > p.Refundable() {
		return ErrRefundExceedsPaid
	}
	p.Refunds = append(p.Refunds, refund)
	p.RefundedTotal += refund.Amount
	if p.RefundedTotal == p.Amount.Final {
		p.Status = PaymentRefunded
	} else {
		p.Status = PaymentPartiallyRefunded
	}
	return nil
}

// CompleteRefund stores the gateway's answer on the pending refund with the given key.
func (p *Payment) CompleteRefund(key, refundID, status string, at time.Time) error {
	i := p.pendingRefund(key)
	if i < 0 {
		return ErrRefundNotPending
	}
	p.Refunds[i].RefundID = refundID
	p.Refunds[i].Status = status
	p.Refunds[i].CompletedAt = &at
	return nil
}

// ReleaseRefund drops a pending refund the gateway did not take and returns its amount
// to the refundable balance.
func (p *Payment) ReleaseRefund(key string) error {
	i := p.pendingRefund(key)
	if i < 0 {
		return ErrRefundNotPending
	}
	p.RefundedTotal -= p.Refunds[i].Amount
	p.Refunds = append(p.Refunds[:i:i], p.Refunds[i+1:]...)
	if p.RefundedTotal == 0 {
		p.Status = PaymentCompleted
	} else {
		p.Status = PaymentPartiallyRefunded
	}
	return nil
}

func (p *Payment) pendingRefund(key string) int {
	for i, r := range p.Refunds {
		if r.Key == key && r.Status == RefundPending {
			return i
		}
	}
	return -1
}

// Clone copies the payment so refund changes can be staged without touching the original.
func (p *Payment) Clone() *Payment {
	cp := *p
	cp.Refunds = append([]RefundRecord(nil), p.Refunds...)
	return &cp
}

// PaymentPatch lists the fields a lifecycle transition may change on a payment.
type PaymentPatch struct {
	Amount        *PaymentAmount
	Status        *PaymentStatus
	Gateway       *GatewayDetails
	Method        *PaymentMethod
	Refunds       []RefundRecord
	RefundedTotal *Money
	CompletedAt   *time.Time
	FailedAt      *time.Time
}
