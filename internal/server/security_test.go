package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBuildCSPHeader(t *testing.T) {
	got := APICSPConfig().BuildCSPHeader()
	want := "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	if got != want {
		t.Errorf("BuildCSPHeader() = %q, want %q", got, want)
	}
	if got := (CSPConfig{}).BuildCSPHeader(); got != "" {
		t.Errorf("empty config = %q", got)
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeadersWithCSP(APICSPConfig(), okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": APICSPConfig().BuildCSPHeader(),
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSanitizeUserInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{"a\x00b", "ab"},
		{"line\nnext\ttab", "line\nnext\ttab"},
		{"bell\x07\x7f", "bell"},
		{"بِسْمِ", "بِسْمِ"},
	}
	for _, tt := range tests {
		if got := SanitizeUserInput(tt.in); got != tt.want {
			t.Errorf("SanitizeUserInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLimitStringLength(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"ayah آية", 6, "ayah آ"},
		{"x", 0, ""},
	}
	for _, tt := range tests {
		if got := LimitStringLength(tt.in, tt.max); got != tt.want {
			t.Errorf("LimitStringLength(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestValidateContentType(t *testing.T) {
	allowed := []string{"application/json", "text/plain"}
	tests := []struct {
		ct   string
		want bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"TEXT/PLAIN", true},
		{"application/xml", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateContentType(tt.ct, allowed); got != tt.want {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
