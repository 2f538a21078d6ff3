package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"courtbook/internal/payments/gateway"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/middleware"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const (
	ackSuccess = "SUCCESS"
	ackFail    = "FAIL"

	maxWebhookBody = 64 << 10
)

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, reference string, result model.GatewayResult) (*model.Booking, error)
}

type EventVerifier interface {
	VerifyEvent(ctx context.Context, eventID string) (*gateway.VerifiedEvent, error)
}

type webhookEnvelope struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type WebhookHandler struct {
	confirmer PaymentConfirmer
	verifier  EventVerifier
	secret    string
	log       *logger.Logger
}

func NewWebhookHandler(confirmer PaymentConfirmer, verifier EventVerifier, secret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		confirmer: confirmer,
		verifier:  verifier,
		secret:    secret,
		log:       log,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.With("request_id", middleware.RequestID(ctx))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn("failed to read payment webhook body", "error", err)
		h.ack(w, http.StatusBadRequest, ackFail)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.ID == "" {
		log.Warn("malformed payment webhook", "error", err)
		h.ack(w, http.StatusBadRequest, ackFail)
		return
	}

	log = log.With("event_id", envelope.ID)
	event, err := h.verifier.VerifyEvent(ctx, envelope.ID)
	if err != nil {
		if errors.Is(err, gateway.ErrMissingReference) {
			log.Warn("ignoring payment event without booking reference")
			h.ack(w, http.StatusOK, ackSuccess)
			return
		}
		log.Warn("payment webhook event could not be verified", "error", err)
		h.ack(w, http.StatusBadRequest, ackFail)
		return
	}

	if !event.Final {
		log.Debug("acknowledged non-final payment event", "kind", event.Kind)
		h.ack(w, http.StatusOK, ackSuccess)
		return
	}

	booking, err := h.confirmer.ConfirmPayment(ctx, event.Reference, model.GatewayResult{
		TransactionID: event.TransactionID,
		Success:       event.Success,
		Amount:        event.Amount,
		FailureReason: event.FailureReason,
	})
	if err != nil {
		status := apperrors.AsAppError(err).StatusCode()
		if status < http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		log.Error("failed to apply payment webhook",
			"reference", event.Reference,
			"status", status,
			"error", err,
		)
		h.ack(w, status, ackFail)
		return
	}

	log.Info("payment webhook applied",
		"reference", booking.Reference,
		"booking_status", booking.Status,
		"success", event.Success,
	)
	h.ack(w, http.StatusOK, ackSuccess)
}

func (h *WebhookHandler) ack(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		h.log.Error("failed to write webhook acknowledgement", "handler", "Webhook", "operation", "Write", "error", err)
	}
}

func (h *WebhookHandler) RegisterRoutes(router *httprouter.Router) {
	router.Handler(http.MethodPost, "/api/v1/payments/webhook", middleware.WebhookSignature(h.secret, h.log)(http.HandlerFunc(h.Handle)))
}
