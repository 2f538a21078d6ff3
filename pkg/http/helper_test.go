package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"courtbook/pkg/config"
)

func TestExtractLimitOffset(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int64
		wantErr    bool
	}{
		{"defaults", "", config.DefaultPaginationLimit, 0, false},
		{"explicit", "?limit=5&offset=10", 5, 10, false},
		{"capped", "?limit=100000", config.MaxPaginationLimit, 0, false},
		{"negative offset", "?offset=-3", config.DefaultPaginationLimit, 0, false},
		{"bad limit", "?limit=abc", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings"+tt.query, nil)
			limit, offset, err := ExtractLimitOffset(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("got (%d, %d), want (%d, %d)", limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestExtractVersion(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x?version=3", nil)
	if v, err := ExtractVersion(req); err != nil || v != 3 {
		t.Errorf("query version = %d, %v", v, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("If-Match", `"7"`)
	if v, err := ExtractVersion(req); err != nil || v != 7 {
		t.Errorf("If-Match version = %d, %v", v, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/x?version=x", nil)
	if _, err := ExtractVersion(req); err == nil {
		t.Error("expected error for non-numeric version")
	}
}
