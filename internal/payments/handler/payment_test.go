package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"courtbook/internal/bookings/service"
	apperrors "courtbook/pkg/errors"
	"courtbook/pkg/logger"
	"courtbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockPaymentService struct {
	getFunc       func(ctx context.Context, id string) (*model.Payment, error)
	byBookingFunc func(ctx context.Context, bookingID string) (*model.Payment, error)
	refundFunc    func(ctx context.Context, paymentID string, amount model.Money, reason, actor string) (*service.RefundResult, error)
}

func (m *mockPaymentService) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return &model.Payment{ID: id}, nil
}

func (m *mockPaymentService) GetPaymentByBooking(ctx context.Context, bookingID string) (*model.Payment, error) {
	if m.byBookingFunc != nil {
		return m.byBookingFunc(ctx, bookingID)
	}
	return &model.Payment{BookingID: bookingID}, nil
}

func (m *mockPaymentService) Refund(ctx context.Context, paymentID string, amount model.Money, reason, actor string) (*service.RefundResult, error) {
	if m.refundFunc != nil {
		return m.refundFunc(ctx, paymentID, amount, reason, actor)
	}
	return &service.RefundResult{Payment: &model.Payment{ID: paymentID}}, nil
}

func newPaymentRouter(svc PaymentService) *httprouter.Router {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	router := httprouter.New()
	NewPaymentHandler(svc, log).RegisterRoutes(router)
	return router
}

func servePayment(router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPaymentLookups(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		svc        *mockPaymentService
		wantStatus int
		wantID     string
	}{
		{
			name:       "by id",
			path:       "/api/v1/payments/id/p-1",
			svc:        &mockPaymentService{},
			wantStatus: http.StatusOK,
			wantID:     "p-1",
		},
		{
			name: "by booking",
			path: "/api/v1/payments/booking/b-1",
			svc: &mockPaymentService{
				byBookingFunc: func(_ context.Context, bookingID string) (*model.Payment, error) {
					return &model.Payment{ID: "p-" + bookingID, BookingID: bookingID}, nil
				},
			},
			wantStatus: http.StatusOK,
			wantID:     "p-b-1",
		},
		{
			name: "unknown payment",
			path: "/api/v1/payments/id/p-404",
			svc: &mockPaymentService{
				getFunc: func(_ context.Context, id string) (*model.Payment, error) {
					return nil, apperrors.NotFoundWithID("Payment", id)
				},
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := servePayment(newPaymentRouter(tt.svc), http.MethodGet, tt.path, "", nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Data model.Payment `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Data.ID != tt.wantID {
				t.Errorf("payment id = %q, want %q", body.Data.ID, tt.wantID)
			}
		})
	}
}

func TestRefund(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantAmount model.Money
		wantReason string
	}{
		{
			name:       "partial refund",
			body:       `{"amount":25.50,"reason":"light failure"}`,
			wantStatus: http.StatusOK,
			wantAmount: 2550,
			wantReason: "light failure",
		},
		{
			name:       "unknown field",
			body:       `{"amount":10,"currency":"HKD"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "gateway rejects",
			body:       `{"amount":10}`,
			serviceErr: apperrors.Payment("Payment gateway rejected the refund", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "already refunded",
			body:       `{"amount":10}`,
			serviceErr: apperrors.Conflict("Payment cannot be refunded while refunded"),
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID, gotReason, gotActor string
			var gotAmount model.Money
			svc := &mockPaymentService{
				refundFunc: func(_ context.Context, paymentID string, amount model.Money, reason, actor string) (*service.RefundResult, error) {
					gotID, gotAmount, gotReason, gotActor = paymentID, amount, reason, actor
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &service.RefundResult{Payment: &model.Payment{ID: paymentID}}, nil
				},
			}
			w := servePayment(newPaymentRouter(svc), http.MethodPost, "/api/v1/payments/id/p-1/refund", tt.body, map[string]string{"X-Actor-ID": "staff-1"})

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotID != "p-1" || gotAmount != tt.wantAmount || gotReason != tt.wantReason || gotActor != "staff-1" {
				t.Errorf("unexpected call: id=%s amount=%d reason=%q actor=%s", gotID, gotAmount, gotReason, gotActor)
			}
		})
	}
}
