package gateway

import (
	"context"
	"fmt"
	"sync"

	"courtbook/pkg/logger"

	"github.com/google/uuid"
)

// Sandbox stands in for the provider when no credentials are configured. Orders and
// refunds always succeed; webhook events cannot be verified, so confirmation has to
// arrive through the payment results topic.
type Sandbox struct {
	log *logger.Logger

	mu      sync.Mutex
	refunds map[string]*RefundResult
}

func NewSandbox(log *logger.Logger) *Sandbox {
	return &Sandbox{log: log, refunds: map[string]*RefundResult{}}
}

func (s *Sandbox) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	token := "sandbox_" + uuid.NewString()
	s.log.Warn("Sandbox gateway order", "reference", req.Reference, "order_token", token)
	return &Order{
		OrderToken:     token,
		RedirectParams: map[string]string{"charge_id": token, "sandbox": "true"},
	}, nil
}

func (s *Sandbox) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.refunds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return existing, nil
	}
	result := &RefundResult{RefundID: "sandbox_rf_" + uuid.NewString(), Status: "submitted"}
	if req.IdempotencyKey != "" {
		s.refunds[req.IdempotencyKey] = result
	}
	s.log.Warn("Sandbox gateway refund", "charge_id", req.OrderReference, "refund_id", result.RefundID)
	return result, nil
}

func (s *Sandbox) VerifyEvent(_ context.Context, eventID string) (*VerifiedEvent, error) {
	return nil, fmt.Errorf("%w: sandbox gateway cannot verify %q", ErrEventUnverified, eventID)
}
