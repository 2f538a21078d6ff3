// Package consumer applies payment results published by an upstream payment service.
package consumer

import (
	"context"
	"strings"

	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/kafka"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"
)

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, reference string, result model.GatewayResult) (*model.Booking, error)
}

// PaymentResultMessage is the payload on the payment results topic.
type PaymentResultMessage struct {
	Reference     string      `json:"reference"`
	TransactionID string      `json:"transaction_id"`
	Success       bool        `json:"success"`
	Amount        model.Money `json:"amount"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

var permanentCodes = map[string]bool{
	apperrors.CodeValidation:   true,
	apperrors.CodeInvalidInput: true,
	apperrors.CodeNotFound:     true,
	apperrors.CodeInvariant:    true,
}

type PaymentResultsHandler struct {
	confirmer PaymentConfirmer
	log       *logger.Logger
}

func NewPaymentResultsHandler(confirmer PaymentConfirmer, log *logger.Logger) *PaymentResultsHandler {
	return &PaymentResultsHandler{confirmer: confirmer, log: log}
}

// Handle is a kafka.MessageHandler. Bad payloads and rejected results are permanent so the
// consumer routes them to the DLQ; everything else is retried.
func (h *PaymentResultsHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var result PaymentResultMessage
	if err := msg.DecodeValue(&result); err != nil {
		return kafka.NewPermanentError("decode payment result", err)
	}
	if strings.TrimSpace(result.Reference) == "" {
		return kafka.NewPermanentError("payment result carries no booking reference", nil)
	}

	booking, err := h.confirmer.ConfirmPayment(ctx, result.Reference, model.GatewayResult{
		TransactionID: result.TransactionID,
		Success:       result.Success,
		Amount:        result.Amount,
		FailureReason: result.FailureReason,
	})
	if err != nil {
		if appErr := apperrors.AsAppError(err); permanentCodes[appErr.Code] {
			return kafka.NewPermanentError("payment result rejected", err)
		}
		return kafka.NewTransientError("apply payment result", err)
	}

	h.log.Info("Payment result applied",
		"reference", booking.Reference,
		"event_id", msg.GetEventID(),
		"booking_status", booking.Status,
		"success", result.Success,
	)
	return nil
}
