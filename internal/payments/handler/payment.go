package handler

import (
	"context"
	"net/http"

	"courtbook/internal/bookings/service"
	httputil "courtbook/pkg/http"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// PaymentService is the part of the booking service behind the payment routes.
type PaymentService interface {
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID string) (*model.Payment, error)
	Refund(ctx context.Context, paymentID string, amount model.Money, reason, actor string) (*service.RefundResult, error)
}

type PaymentHandler struct {
	service PaymentService
	log     *logger.Logger
}

func NewPaymentHandler(service PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log,
	}
}

func (h *PaymentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	payment, err := h.service.GetPayment(r.Context(), ps.ByName("id"))
	h.respond(w, "GetByID", payment, err)
}

func (h *PaymentHandler) GetByBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	payment, err := h.service.GetPaymentByBooking(r.Context(), ps.ByName("booking_id"))
	h.respond(w, "GetByBooking", payment, err)
}

func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.RefundPaymentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Refund(r.Context(), ps.ByName("id"), req.Amount, req.Reason, httputil.Actor(r))
	h.respond(w, "Refund", result, err)
}

func (h *PaymentHandler) respond(w http.ResponseWriter, name string, data any, err error) {
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *PaymentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/payments/id/:id", h.GetByID)
	router.GET("/api/v1/payments/booking/:booking_id", h.GetByBooking)
	router.POST("/api/v1/payments/id/:id/refund", h.Refund)
}
