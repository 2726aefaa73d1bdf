package validate

import (
	"strings"
	"testing"

	"github.com/hitoshi/sharebnb/internal/model"
)

func TestUsername(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "simple", value: "alice", wantErr: false},
		{name: "punctuation", value: "a.b_c-d", wantErr: false},
		{name: "empty", value: "", wantErr: true},
		{name: "blank", value: "   ", wantErr: true},
		{name: "space inside", value: "al ice", wantErr: true},
		{name: "slash", value: "alice/bob", wantErr: true},
		{name: "30 chars", value: strings.Repeat("a", 30), wantErr: false},
		{name: "31 chars", value: strings.Repeat("a", 31), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := model.FieldErrors{}
			Username(errs, tt.value)
			if got := errs.HasErrors(); got != tt.wantErr {
				t.Errorf("Username(%q) errors = %v, want error %v", tt.value, errs, tt.wantErr)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{value: "alice@example.com", wantErr: false},
		{value: "", wantErr: true},
		{value: "not-an-email", wantErr: true},
		{value: "Alice <alice@example.com>", wantErr: true},
	}

	for _, tt := range tests {
		errs := model.FieldErrors{}
		Email(errs, tt.value)
		if got := errs.HasErrors(); got != tt.wantErr {
			t.Errorf("Email(%q) errors = %v, want error %v", tt.value, errs, tt.wantErr)
		}
	}
}

func TestPassword_MinimumLength(t *testing.T) {
	errs := model.FieldErrors{}
	Password(errs, "12345")
	if len(errs["password"]) != 1 {
		t.Errorf("errors = %v, want one password error", errs)
	}

	errs = model.FieldErrors{}
	Password(errs, "123456")
	if errs.HasErrors() {
		t.Errorf("errors = %v, want none", errs)
	}
}

func TestHTTPURL(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{value: "", wantErr: false},
		{value: "https://cdn.example.com/a.jpg", wantErr: false},
		{value: "http://example.com", wantErr: false},
		{value: "ftp://example.com/a.jpg", wantErr: true},
		{value: "/relative/path.jpg", wantErr: true},
		{value: "https://", wantErr: true},
	}

	for _, tt := range tests {
		errs := model.FieldErrors{}
		HTTPURL(errs, "image_url", tt.value)
		if got := errs.HasErrors(); got != tt.wantErr {
			t.Errorf("HTTPURL(%q) errors = %v, want error %v", tt.value, errs, tt.wantErr)
		}
	}
}

func TestMaxLength_CountsRunes(t *testing.T) {
	errs := model.FieldErrors{}
	MaxLength(errs, "body", strings.Repeat("あ", 3), 3)
	if errs.HasErrors() {
		t.Errorf("3 runes should fit max 3, got %v", errs)
	}
	MaxLength(errs, "body", strings.Repeat("あ", 4), 3)
	if !errs.HasErrors() {
		t.Error("4 runes should exceed max 3")
	}
}

func TestPassword_MaximumBytes(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "72 bytes", value: strings.Repeat("a", 72), wantErr: false},
		{name: "73 bytes", value: strings.Repeat("a", 73), wantErr: true},
		// 25文字でも75バイトになる
		{name: "multibyte over limit", value: strings.Repeat("あ", 25), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := model.FieldErrors{}
			Password(errs, tt.value)
			if got := errs.HasErrors(); got != tt.wantErr {
				t.Errorf("Password(%d bytes) errors = %v, want error %v", len(tt.value), errs, tt.wantErr)
			}
		})
	}
}

func TestNonNegativeInt(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{value: "0", want: 0},
		{value: " 120 ", want: 120},
		{value: "2147483647", want: 2147483647},
		{value: "2147483648", wantErr: true},
		{value: "3000000000", wantErr: true},
		{value: "-1", wantErr: true},
		{value: "-3000000000", wantErr: true},
		{value: "12.5", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			errs := model.FieldErrors{}
			got, ok := NonNegativeInt(errs, "price_per_night", tt.value)
			if ok == tt.wantErr {
				t.Fatalf("NonNegativeInt(%q) ok = %v, errors = %v", tt.value, ok, errs)
			}
			if tt.wantErr && len(errs["price_per_night"]) != 1 {
				t.Errorf("errors = %v, want one price_per_night error", errs)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("NonNegativeInt(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}
