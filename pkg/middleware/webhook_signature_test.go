package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"courtbook/pkg/logger"
)

func TestWebhookSignature(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	const secret = "whsec"
	body := `{"id":"evnt_test_1"}`

	var seen string
	handler := WebhookSignature(secret, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"valid", Sign([]byte(body), secret), http.StatusOK},
		{"valid with prefix", "sha256=" + Sign([]byte(body), secret), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", Sign([]byte(body), "other"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && seen != body {
				t.Errorf("body not restored for next handler: %q", seen)
			}
			if tt.want != http.StatusOK && rec.Body.String() != "FAIL" {
				t.Errorf("body = %q, want FAIL", rec.Body.String())
			}
		})
	}
}

func TestWebhookSignature_DisabledWithoutSecret(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Format: logger.JSON, Service: "test"})
	handler := WebhookSignature("", log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
