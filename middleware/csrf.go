package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/mnehpets/ajaxview/endpoint"
)

const (
	// DefaultCSRFCookieName is the default name of the CSRF cookie.
	DefaultCSRFCookieName = "csrftoken"
	// DefaultCSRFHeader is the request header unsafe requests carry the token in.
	DefaultCSRFHeader = "X-CSRFToken"
	// DefaultCSRFFormField is the form field checked when the header is absent.
	DefaultCSRFFormField = "csrfmiddlewaretoken"
	// DefaultCSRFMaxAge is the CSRF cookie lifetime.
	DefaultCSRFMaxAge = 365 * 24 * time.Hour
)

// csrfTokenBytes is the number of random bytes in a token.
// 32 bytes -> 43 chars raw URL base64.
const csrfTokenBytes = 32

// ErrCSRF is the cause of the 403 returned for a missing or wrong token.
var ErrCSRF = errors.New("CSRF token missing or incorrect")

// csrfData is what the CSRF cookie seals.
type csrfData struct {
	Token  string    `cbor:"1,keyasint"`
	Issued time.Time `cbor:"2,keyasint"`
}

// CSRFProcessor issues a per-client CSRF token and checks it on unsafe
// requests.
//
// The token lives in a sealed cookie and is made available downstream via
// CSRFTokenFromContext, so that pages can embed it. Requests with a method
// other than GET, HEAD, OPTIONS or TRACE must present the same token in the
// header (DefaultCSRFHeader) or, for form posts, in the form field
// (DefaultCSRFFormField); otherwise the chain stops with a 403.
type CSRFProcessor struct {
	cookie    *SecureCookie
	header    string
	formField string
	maxAge    time.Duration
}

// CSRFOption configures a CSRFProcessor.
type CSRFOption func(*csrfConfig)

type csrfConfig struct {
	cookieName    string
	cookieOptions []SecureCookieOption
	header        string
	formField     string
	maxAge        time.Duration
}

// WithCSRFCookieName sets the CSRF cookie name.
func WithCSRFCookieName(name string) CSRFOption {
	return func(c *csrfConfig) { c.cookieName = name }
}

// WithCSRFCookieOptions adds SecureCookieOptions for the CSRF cookie.
func WithCSRFCookieOptions(opts ...SecureCookieOption) CSRFOption {
	return func(c *csrfConfig) { c.cookieOptions = append(c.cookieOptions, opts...) }
}

// WithCSRFHeader sets the header unsafe requests carry the token in.
func WithCSRFHeader(name string) CSRFOption {
	return func(c *csrfConfig) { c.header = name }
}

// WithCSRFFormField sets the form field checked when the header is absent.
// An empty name disables the form fallback.
func WithCSRFFormField(name string) CSRFOption {
	return func(c *csrfConfig) { c.formField = name }
}

// WithCSRFMaxAge sets the CSRF cookie lifetime.
func WithCSRFMaxAge(d time.Duration) CSRFOption {
	return func(c *csrfConfig) { c.maxAge = d }
}

// NewCSRFProcessor returns a CSRFProcessor whose cookie is sealed with
// keys[keyID].
func NewCSRFProcessor(keyID string, keys map[string][]byte, opts ...CSRFOption) (*CSRFProcessor, error) {
	cfg := csrfConfig{
		cookieName: DefaultCSRFCookieName,
		header:     DefaultCSRFHeader,
		formField:  DefaultCSRFFormField,
		maxAge:     DefaultCSRFMaxAge,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxAge < time.Second {
		cfg.maxAge = DefaultCSRFMaxAge
	}

	cookie, err := NewSecureCookie(cfg.cookieName, keyID, keys, cfg.cookieOptions...)
	if err != nil {
		return nil, err
	}
	return &CSRFProcessor{
		cookie:    cookie,
		header:    cfg.header,
		formField: cfg.formField,
		maxAge:    cfg.maxAge,
	}, nil
}

type csrfContextKey struct{}

// WithCSRFToken stores token in ctx.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfContextKey{}, token)
}

// CSRFTokenFromContext returns the token a CSRFProcessor stored in ctx.
func CSRFTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(csrfContextKey{}).(string)
	return token, ok && token != ""
}

// Process implements endpoint.Processor.
func (p *CSRFProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	var data csrfData
	issued := false
	if c, err := r.Cookie(p.cookie.Name()); err == nil {
		if p.cookie.Open(c, &data) != nil || data.Token == "" {
			data = csrfData{}
		}
	}
	if data.Token == "" {
		token, err := newCSRFToken()
		if err != nil {
			return endpoint.Error(http.StatusInternalServerError, "", err)
		}
		data = csrfData{Token: token, Issued: time.Now().UTC().Truncate(time.Second)}
		issued = true
	}

	if !safeMethod(r.Method) {
		// A freshly issued token cannot have been sent back yet.
		if issued || !p.tokenMatches(r, data.Token) {
			return endpoint.Error(http.StatusForbidden, ErrCSRF.Error(), ErrCSRF)
		}
	}

	if issued {
		endpoint.Defer(r.Context(), func(w http.ResponseWriter) {
			if c, err := p.cookie.Seal(data, int(p.maxAge.Seconds())); err == nil {
				http.SetCookie(w, c)
			}
		})
	}

	*r = *r.WithContext(WithCSRFToken(r.Context(), data.Token))
	return next(w, r)
}

func (p *CSRFProcessor) tokenMatches(r *http.Request, want string) bool {
	got := ""
	if p.header != "" {
		got = r.Header.Get(p.header)
	}
	if got == "" && p.formField != "" && !endpoint.IsJSON(r) {
		switch endpoint.MediaType(r) {
		case "application/x-www-form-urlencoded", "multipart/form-data":
			got = r.PostFormValue(p.formField)
		}
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

var _ endpoint.Processor = (*CSRFProcessor)(nil)
