package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func runProcessor(t *testing.T, p interface {
	Process(http.ResponseWriter, *http.Request, func(http.ResponseWriter, *http.Request) error) error
}, r *http.Request) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	w := httptest.NewRecorder()
	var seen *http.Request
	err := p.Process(w, r, func(_ http.ResponseWriter, r *http.Request) error {
		seen = r
		return nil
	})
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if seen == nil {
		t.Fatal("next was not called")
	}
	return w, seen
}

func TestSecurityHeadersProcessor_DefaultHeaders(t *testing.T) {
	w, r := runProcessor(t, NewSecurityHeadersProcessor(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got, want := w.Header().Get("Strict-Transport-Security"), "max-age=31536000; includeSubDomains"; got != want {
		t.Errorf("HSTS: got %q, want %q", got, want)
	}
	if got, want := w.Header().Get("Referrer-Policy"), "same-origin"; got != want {
		t.Errorf("Referrer-Policy: got %q, want %q", got, want)
	}
	if got, want := w.Header().Get("X-Frame-Options"), "DENY"; got != want {
		t.Errorf("X-Frame-Options: got %q, want %q", got, want)
	}
	if got, want := w.Header().Get("X-Content-Type-Options"), "nosniff"; got != want {
		t.Errorf("X-Content-Type-Options: got %q, want %q", got, want)
	}

	nonce, ok := ScriptNonceFromContext(r.Context())
	if !ok {
		t.Fatal("no script nonce in context")
	}
	csp := w.Header().Get("Content-Security-Policy")
	if !strings.HasPrefix(csp, "default-src 'self';") {
		t.Errorf("CSP: got %q, want default-src 'self' first", csp)
	}
	if !strings.HasSuffix(csp, "; script-src 'self' 'nonce-"+nonce+"'") {
		t.Errorf("CSP: got %q, want script-src with nonce %q", csp, nonce)
	}
}

func TestSecurityHeadersProcessor_NonceIsPerRequest(t *testing.T) {
	p := NewSecurityHeadersProcessor()
	_, r1 := runProcessor(t, p, httptest.NewRequest(http.MethodGet, "/", nil))
	_, r2 := runProcessor(t, p, httptest.NewRequest(http.MethodGet, "/", nil))

	n1, _ := ScriptNonceFromContext(r1.Context())
	n2, _ := ScriptNonceFromContext(r2.Context())
	if n1 == n2 {
		t.Fatalf("nonce reused across requests: %q", n1)
	}
	if len(n1) != 22 {
		t.Fatalf("nonce length: got %d want 22", len(n1))
	}
}

func TestSecurityHeadersProcessor_Options(t *testing.T) {
	p := NewSecurityHeadersProcessor(
		WithHSTS(60, false, true),
		WithReferrerPolicy("no-referrer"),
		WithFrameOptions("SAMEORIGIN"),
		WithCSP("default-src 'none';"),
		WithScriptSources("https://cdn.example.com"),
	)
	w, r := runProcessor(t, p, httptest.NewRequest(http.MethodGet, "/", nil))
	nonce, _ := ScriptNonceFromContext(r.Context())

	if got, want := w.Header().Get("Strict-Transport-Security"), "max-age=60; preload"; got != want {
		t.Errorf("HSTS: got %q, want %q", got, want)
	}
	if got, want := w.Header().Get("Referrer-Policy"), "no-referrer"; got != want {
		t.Errorf("Referrer-Policy: got %q, want %q", got, want)
	}
	if got, want := w.Header().Get("X-Frame-Options"), "SAMEORIGIN"; got != want {
		t.Errorf("X-Frame-Options: got %q, want %q", got, want)
	}
	want := "default-src 'none'; script-src 'self' 'nonce-" + nonce + "' https://cdn.example.com"
	if got := w.Header().Get("Content-Security-Policy"); got != want {
		t.Errorf("CSP: got %q, want %q", got, want)
	}
}

func TestSecurityHeadersProcessor_Disabled(t *testing.T) {
	p := NewSecurityHeadersProcessor(WithoutHSTS(), WithCSP(""), WithFrameOptions(""), WithReferrerPolicy(""))
	p.ContentTypeOptions = false
	w, r := runProcessor(t, p, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"Strict-Transport-Security", "Content-Security-Policy", "X-Frame-Options", "Referrer-Policy", "X-Content-Type-Options"} {
		if got := w.Header().Get(h); got != "" {
			t.Errorf("%s: got %q, want unset", h, got)
		}
	}
	if _, ok := ScriptNonceFromContext(r.Context()); ok {
		t.Error("nonce generated with CSP disabled")
	}
}

func TestFormatHSTS(t *testing.T) {
	tests := []struct {
		config *HSTSConfig
		want   string
	}{
		{nil, ""},
		{&HSTSConfig{MaxAge: 0}, ""},
		{&HSTSConfig{MaxAge: 10}, "max-age=10"},
		{&HSTSConfig{MaxAge: 10, IncludeSubDomains: true, Preload: true}, "max-age=10; includeSubDomains; preload"},
	}
	for _, tt := range tests {
		if got := formatHSTS(tt.config); got != tt.want {
			t.Errorf("formatHSTS(%+v): got %q, want %q", tt.config, got, tt.want)
		}
	}
}
