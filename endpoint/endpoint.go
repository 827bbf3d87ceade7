// Package endpoint provides the HTTP plumbing the ajax views run on.
//
// A request passes through three phases:
//
//  1. Process: zero or more Processors run in order (CSRF checks, header
//     policy). Each either calls next or short-circuits with an error.
//  2. Endpoint: the EndpointFunc reads the request, runs business logic and
//     returns a Renderer. It does not write to the response directly.
//  3. Render: the returned Renderer writes the status code, headers and body.
//
// Errors returned from any phase are written as plain text. An EndpointError
// carries the HTTP status to use; anything else becomes a 500.
//
// Supported Renderers:
//   - JSONRenderer: Serializes a value as JSON.
//   - StringRenderer: Writes a plain string.
//   - HTMLTemplateRenderer: Renders an html/template.
package endpoint

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// EndpointError is a client-visible error that maps directly to an HTTP status code.
type EndpointError struct {
	Status int
	// Message is a short, human-readable description suitable for an HTTP error body.
	Message string
	Cause   error
}

func (e *EndpointError) Error() string {
	if e == nil {
		return "endpoint: error: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Error creates a new EndpointError. An err that already is an
// EndpointError is returned unchanged.
func Error(status int, message string, err error) error {
	var ee *EndpointError
	if errors.As(err, &ee) {
		return err
	}
	return &EndpointError{Status: status, Message: message, Cause: err}
}

// Renderers are values that write a response into an http.ResponseWriter.
//
// Renderers MUST call w.WriteHeader() and may set Content-Type before doing
// so. A non-nil error reports a failure to write the response.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// RendererFunc adapts a function to a Renderer.
type RendererFunc func(w http.ResponseWriter, r *http.Request) error

func (f RendererFunc) Render(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// Processor is middleware-style logic that runs before the EndpointFunc.
//
// Processors MUST call next unless they intend to short-circuit the request,
// and MUST NOT write the response. Use Defer to touch headers just before
// they are written.
type Processor interface {
	Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error
}

// ProcessorFunc adapts a function to a Processor.
type ProcessorFunc func(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error

func (f ProcessorFunc) Process(w http.ResponseWriter, r *http.Request, next func(w http.ResponseWriter, r *http.Request) error) error {
	return f(w, r, next)
}

// EndpointFunc handles a request and returns the Renderer for its response.
type EndpointFunc func(w http.ResponseWriter, r *http.Request) (Renderer, error)

// EndpointHandler is the http.Handler wrapper for an EndpointFunc.
type EndpointHandler struct {
	Endpoint   EndpointFunc
	Processors []Processor
}

// Handler constructs an EndpointHandler.
func Handler(fn EndpointFunc, processors ...Processor) *EndpointHandler {
	return &EndpointHandler{
		Endpoint:   fn,
		Processors: processors,
	}
}

type hooksKey struct{}

// Defer registers a function to be called before the response headers are written.
// The function fn must not call WriteHeader itself.
//
// Outside an EndpointHandler this is a silent no-op.
func Defer(ctx context.Context, fn func(http.ResponseWriter)) {
	hooks, ok := ctx.Value(hooksKey{}).(*[]func(http.ResponseWriter))
	if ok && hooks != nil {
		*hooks = append(*hooks, fn)
	}
}

// Commit executes all deferred functions registered via Defer, newest first.
// It should be called exactly once before writing headers.
func Commit(ctx context.Context, w http.ResponseWriter) {
	hooks, ok := ctx.Value(hooksKey{}).(*[]func(http.ResponseWriter))
	if ok && hooks != nil {
		for i := len(*hooks) - 1; i >= 0; i-- {
			(*hooks)[i](w)
		}
		*hooks = nil
	}
}

// ServeHTTP implements http.Handler.
func (h *EndpointHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Endpoint == nil {
		http.Error(w, "endpoint: nil EndpointFunc", http.StatusInternalServerError)
		return
	}

	if r.Context().Value(hooksKey{}) == nil {
		var hooks []func(http.ResponseWriter)
		r = r.WithContext(context.WithValue(r.Context(), hooksKey{}, &hooks))
	}

	var run func(i int, w2 http.ResponseWriter, r2 *http.Request) error
	run = func(i int, w2 http.ResponseWriter, r2 *http.Request) error {
		if i < len(h.Processors) {
			if h.Processors[i] == nil {
				return errors.New("endpoint: nil processor")
			}
			return h.Processors[i].Process(w2, r2, func(w3 http.ResponseWriter, r3 *http.Request) error {
				return run(i+1, w3, r3)
			})
		}

		renderer, err := h.Endpoint(w2, r2)
		if err != nil {
			return err
		}
		if renderer == nil {
			return errors.New("endpoint: nil renderer")
		}
		if c, ok := renderer.(io.Closer); ok {
			defer c.Close()
		}

		Commit(r2.Context(), w2)
		return renderer.Render(w2, r2)
	}

	if err := run(0, w, r); err != nil {
		status := http.StatusInternalServerError
		message := err.Error()

		var ee *EndpointError
		if errors.As(err, &ee) && ee != nil {
			if ee.Status >= 100 {
				status = ee.Status
			}
			message = ee.Message
			if message == "" {
				message = http.StatusText(status)
			}
		}
		Commit(r.Context(), w)
		http.Error(w, message, status)
	}
}
