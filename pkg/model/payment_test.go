package model

import (
	"errors"
	"testing"
	"time"
)

func paidPayment() *Payment {
	return &Payment{
		Amount: PaymentAmount{Original: 10000, Final: 10000, Currency: "HKD"},
		Status: PaymentCompleted,
	}
}

func TestApplyRefund(t *testing.T) {
	tests := []struct {
		name       string
		status     PaymentStatus
		refunded   Money
		amount     Money
		wantErr    error
		wantStatus PaymentStatus
	}{
		{name: "full", status: PaymentCompleted, amount: 10000, wantStatus: PaymentRefunded},
		{name: "partial", status: PaymentCompleted, amount: 2500, wantStatus: PaymentPartiallyRefunded},
		{name: "rest of a partial", status: PaymentPartiallyRefunded, refunded: 2500, amount: 7500, wantStatus: PaymentRefunded},
		{name: "more than paid", status: PaymentCompleted, amount: 10001, wantErr: ErrRefundExceedsPaid},
		{name: "more than left", status: PaymentPartiallyRefunded, refunded: 5000, amount: 6000, wantErr: ErrRefundExceedsPaid},
		{name: "zero", status: PaymentCompleted, amount: 0, wantErr: ErrRefundExceedsPaid},
		{name: "unpaid", status: PaymentProcessing, amount: 100, wantErr: ErrRefundNotAllowed},
		{name: "already refunded", status: PaymentRefunded, refunded: 10000, amount: 100, wantErr: ErrRefundNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paidPayment()
			p.Status = tt.status
			p.RefundedTotal = tt.refunded

			err := p.ApplyRefund(RefundRecord{Amount: tt.amount})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ApplyRefund() error = %v, want %v", err, tt.wantErr)
				}
				if p.RefundedTotal != tt.refunded || len(p.Refunds) != 0 {
					t.Error("a rejected refund must not change the payment")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyRefund() error = %v", err)
			}
			if p.Status != tt.wantStatus || p.RefundedTotal != tt.refunded+tt.amount {
				t.Errorf("got %s refunded %d", p.Status, p.RefundedTotal)
			}
		})
	}
}

func TestPendingRefund_CompleteAndRelease(t *testing.T) {
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	p := paidPayment()
	if err := p.ApplyRefund(RefundRecord{Key: "refund_A", Amount: 4000, Status: RefundPending}); err != nil {
		t.Fatal(err)
	}
	if p.Refundable() != 6000 {
		t.Fatalf("a pending refund must hold its amount, refundable = %d", p.Refundable())
	}

	if err := p.CompleteRefund("refund_A", "rfnd_1", "submitted", at); err != nil {
		t.Fatalf("CompleteRefund() error = %v", err)
	}
	if r := p.Refunds[0]; r.RefundID != "rfnd_1" || r.Status != "submitted" || r.CompletedAt == nil {
		t.Errorf("unexpected record %+v", r)
	}
	if err := p.CompleteRefund("refund_A", "rfnd_2", "submitted", at); !errors.Is(err, ErrRefundNotPending) {
		t.Errorf("a settled refund cannot be completed twice, got %v", err)
	}

	if err := p.ApplyRefund(RefundRecord{Key: "refund_B", Amount: 1000, Status: RefundPending}); err != nil {
		t.Fatal(err)
	}
	before := p.Clone()
	if err := p.ReleaseRefund("refund_B"); err != nil {
		t.Fatalf("ReleaseRefund() error = %v", err)
	}
	if p.RefundedTotal != 4000 || p.Status != PaymentPartiallyRefunded || len(p.Refunds) != 1 {
		t.Errorf("got %s refunded %d with %d records", p.Status, p.RefundedTotal, len(p.Refunds))
	}
	if len(before.Refunds) != 2 || before.Refunds[1].Key != "refund_B" {
		t.Error("release must not modify a clone taken earlier")
	}
	if err := p.ReleaseRefund("refund_B"); !errors.Is(err, ErrRefundNotPending) {
		t.Errorf("releasing twice should fail, got %v", err)
	}
}

func TestReleaseRefund_BackToCompleted(t *testing.T) {
	p := paidPayment()
	if err := p.ApplyRefund(RefundRecord{Key: "refund_A", Amount: 10000, Status: RefundPending}); err != nil {
		t.Fatal(err)
	}
	if p.Status != PaymentRefunded {
		t.Fatalf("status = %s", p.Status)
	}
	if err := p.ReleaseRefund("refund_A"); err != nil {
		t.Fatal(err)
	}
	if p.Status != PaymentCompleted || p.RefundedTotal != 0 || len(p.Refunds) != 0 {
		t.Errorf("got %s refunded %d", p.Status, p.RefundedTotal)
	}
}
