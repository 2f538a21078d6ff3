package sanitizer

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		region  string
		want    string
		wantErr bool
	}{
		{
			name:   "valid E.164 format",
			input:  "+8613800138000",
			region: "CN",
			want:   "+8613800138000",
		},
		{
			name:   "national number in default region",
			input:  "13800138000",
			region: "CN",
			want:   "+8613800138000",
		},
		{
			name:   "with spaces",
			input:  "+86 138 0013 8000",
			region: "CN",
			want:   "+8613800138000",
		},
		{
			name:   "with parentheses and dashes",
			input:  "+1 (212) 555-1234",
			region: "CN",
			want:   "+12125551234",
		},
		{
			name:   "lowercase region",
			input:  "2125551234",
			region: "us",
			want:   "+12125551234",
		},
		{
			name:   "leading and trailing spaces",
			input:  "  +8613800138000  ",
			region: "CN",
			want:   "+8613800138000",
		},
		{
			name:   "empty string",
			input:  "",
			region: "CN",
			want:   "",
		},
		{
			name:   "only whitespace",
			input:  "   ",
			region: "CN",
			want:   "",
		},
		{
			name:    "letters",
			input:   "call me maybe",
			region:  "CN",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input, tt.region)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("expected ErrInvalidPhone, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	first, err := NormalizePhone("138 0013 8000", "CN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NormalizePhone(first, "CN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("not idempotent: %q then %q", first, second)
	}
}
