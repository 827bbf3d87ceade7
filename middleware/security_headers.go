package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/mnehpets/ajaxview/endpoint"
)

// scriptNonceBytes is the number of random bytes in a CSP nonce.
const scriptNonceBytes = 16

// SecurityHeadersProcessor sets response hardening headers for ajax views.
//
// Defaults from NewSecurityHeadersProcessor:
//   - HSTS: max-age=31536000; includeSubDomains
//   - Referrer-Policy: same-origin
//   - X-Frame-Options: DENY
//   - X-Content-Type-Options: nosniff
//   - Content-Security-Policy: default-src 'self'; script-src 'self' 'nonce-<n>'; ...
//
// The view's client helper is an inline script, so every request gets a
// fresh nonce that is both placed in the policy and exposed through
// ScriptNonceFromContext for the helper's <script nonce="..."> tag.
type SecurityHeadersProcessor struct {
	// HSTS configures Strict-Transport-Security. Nil disables it.
	HSTS *HSTSConfig

	// ReferrerPolicy sets Referrer-Policy. Empty disables it.
	ReferrerPolicy string

	// FrameOptions sets X-Frame-Options. Empty disables it.
	FrameOptions string

	// ContentTypeOptions sets X-Content-Type-Options: nosniff.
	ContentTypeOptions bool

	// ContentSecurityPolicy is the policy without script-src, which the
	// processor appends with the request nonce. Empty disables CSP and the
	// nonce.
	ContentSecurityPolicy string

	// ScriptSources are extra script-src sources besides 'self' and the nonce.
	ScriptSources []string
}

// HSTSConfig configures HTTP Strict Transport Security.
type HSTSConfig struct {
	// MaxAge is in seconds. A value <= 0 omits the header.
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

// SecurityHeadersOption configures a SecurityHeadersProcessor.
type SecurityHeadersOption func(*SecurityHeadersProcessor)

// NewSecurityHeadersProcessor returns a SecurityHeadersProcessor with
// defaults suited to same-origin ajax pages.
func NewSecurityHeadersProcessor(opts ...SecurityHeadersOption) *SecurityHeadersProcessor {
	p := &SecurityHeadersProcessor{
		HSTS: &HSTSConfig{
			MaxAge:            31536000, // 1 year
			IncludeSubDomains: true,
		},
		ReferrerPolicy:        "same-origin",
		FrameOptions:          "DENY",
		ContentTypeOptions:    true,
		ContentSecurityPolicy: "default-src 'self'; connect-src 'self'; base-uri 'self'; form-action 'self'; frame-ancestors 'none'",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithHSTS configures HSTS.
func WithHSTS(maxAge int, includeSubDomains, preload bool) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) {
		p.HSTS = &HSTSConfig{MaxAge: maxAge, IncludeSubDomains: includeSubDomains, Preload: preload}
	}
}

// WithoutHSTS disables HSTS, e.g. for plain HTTP development servers.
func WithoutHSTS() SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) { p.HSTS = nil }
}

// WithReferrerPolicy sets Referrer-Policy.
func WithReferrerPolicy(policy string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) { p.ReferrerPolicy = policy }
}

// WithFrameOptions sets X-Frame-Options. Common values: DENY, SAMEORIGIN.
func WithFrameOptions(options string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) { p.FrameOptions = options }
}

// WithCSP sets the Content-Security-Policy, excluding script-src.
func WithCSP(policy string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) { p.ContentSecurityPolicy = policy }
}

// WithScriptSources adds script-src sources, e.g. a CDN origin.
func WithScriptSources(sources ...string) SecurityHeadersOption {
	return func(p *SecurityHeadersProcessor) { p.ScriptSources = append(p.ScriptSources, sources...) }
}

type scriptNonceKey struct{}

// ScriptNonceFromContext returns the CSP nonce a SecurityHeadersProcessor
// generated for the request.
func ScriptNonceFromContext(ctx context.Context) (string, bool) {
	nonce, ok := ctx.Value(scriptNonceKey{}).(string)
	return nonce, ok && nonce != ""
}

// Process implements endpoint.Processor.
func (p *SecurityHeadersProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	h := w.Header()
	if hsts := formatHSTS(p.HSTS); hsts != "" {
		h.Set("Strict-Transport-Security", hsts)
	}
	if p.ReferrerPolicy != "" {
		h.Set("Referrer-Policy", p.ReferrerPolicy)
	}
	if p.FrameOptions != "" {
		h.Set("X-Frame-Options", p.FrameOptions)
	}
	if p.ContentTypeOptions {
		h.Set("X-Content-Type-Options", "nosniff")
	}

	if p.ContentSecurityPolicy != "" {
		nonce, err := newScriptNonce()
		if err != nil {
			return endpoint.Error(http.StatusInternalServerError, "", err)
		}
		h.Set("Content-Security-Policy", p.policy(nonce))
		*r = *r.WithContext(context.WithValue(r.Context(), scriptNonceKey{}, nonce))
	}

	return next(w, r)
}

func (p *SecurityHeadersProcessor) policy(nonce string) string {
	sources := append([]string{"'self'", "'nonce-" + nonce + "'"}, p.ScriptSources...)
	return strings.TrimRight(strings.TrimSpace(p.ContentSecurityPolicy), ";") + "; script-src " + strings.Join(sources, " ")
}

func formatHSTS(config *HSTSConfig) string {
	if config == nil || config.MaxAge <= 0 {
		return ""
	}
	parts := []string{"max-age=" + strconv.Itoa(config.MaxAge)}
	if config.IncludeSubDomains {
		parts = append(parts, "includeSubDomains")
	}
	if config.Preload {
		parts = append(parts, "preload")
	}
	return strings.Join(parts, "; ")
}

func newScriptNonce() (string, error) {
	b := make([]byte, scriptNonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var _ endpoint.Processor = (*SecurityHeadersProcessor)(nil)
