// Package gateway talks to the external payment provider.
package gateway

import (
	"context"
	"errors"

	"courtbook/pkg/model"
)

var (
	ErrTokenRequired    = errors.New("card payments require a payment token")
	ErrUnsupported      = errors.New("payment method is not supported by the gateway")
	ErrEventUnverified  = errors.New("gateway event could not be verified")
	ErrGatewayRejected  = errors.New("gateway rejected the request")
	ErrMissingReference = errors.New("gateway event carries no booking reference")
)

// MetadataReference is the metadata key carrying the booking reference through the gateway.
const MetadataReference = "booking_reference"

type OrderRequest struct {
	Amount    model.Money
	Currency  string
	Reference string
	Method    model.PaymentMethod
	ReturnURI string
	// Token is a card token or a client-created source id; wallet methods may leave it empty.
	Token    string
	Metadata map[string]string
}

type Order struct {
	OrderToken     string            `json:"order_token"`
	RedirectParams map[string]string `json:"redirect_params,omitempty"`
}

type RefundRequest struct {
	OrderReference string
	Amount         model.Money
	Currency       string
	Reason         string
	// IdempotencyKey makes a repeated request return the refund created by the first one.
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// VerifiedEvent is a webhook event re-read from the gateway. Final is false for events
// that do not settle a charge; those are acknowledged and ignored.
type VerifiedEvent struct {
	EventID        string
	Kind           string
	Reference      string
	OrderReference string
	TransactionID  string
	Success        bool
	Final          bool
	Amount         model.Money
	FailureReason  string
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	VerifyEvent(ctx context.Context, eventID string) (*VerifiedEvent, error)
}

// call runs fn on its own goroutine so a gateway SDK without context support still
// returns as soon as ctx is done.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}
