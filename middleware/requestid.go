package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/mnehpets/ajaxview/endpoint"
)

// DefaultRequestIDHeader carries the request id in both directions.
const DefaultRequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds inbound ids taken from the header.
const maxRequestIDLen = 128

// RequestIDProcessor tags each request with an id, so that a server-error
// answered to a client can be matched with its log entry.
//
// A well-formed inbound X-Request-ID (from a proxy) is kept; otherwise a
// random UUID is minted. The id is set on the response header and stored in
// the request context.
type RequestIDProcessor struct {
	Header string
}

// NewRequestIDProcessor returns a RequestIDProcessor using
// DefaultRequestIDHeader.
func NewRequestIDProcessor() *RequestIDProcessor {
	return &RequestIDProcessor{Header: DefaultRequestIDHeader}
}

type requestIDKey struct{}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id a RequestIDProcessor stored in ctx.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// Process implements endpoint.Processor.
func (p *RequestIDProcessor) Process(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	header := p.Header
	if header == "" {
		header = DefaultRequestIDHeader
	}

	id := r.Header.Get(header)
	if !validRequestID(id) {
		id = uuid.NewString()
	}
	w.Header().Set(header, id)

	*r = *r.WithContext(WithRequestID(r.Context(), id))
	return next(w, r)
}

// validRequestID accepts printable ASCII without spaces.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

var _ endpoint.Processor = (*RequestIDProcessor)(nil)
