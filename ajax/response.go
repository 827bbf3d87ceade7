package ajax

import (
	"encoding/json"
	"net/http"

	"github.com/mnehpets/ajaxview/endpoint"
)

// Kind is the response_type of a Response.
type Kind string

const (
	// KindComplete: the method returned normally.
	KindComplete Kind = "complete"
	// KindInvalidRequest: the call envelope was malformed.
	KindInvalidRequest Kind = "invalid-request"
	// KindClientError: the method returned a ClientError.
	KindClientError Kind = "client-error"
	// KindServerError: anything else went wrong. No detail is sent.
	KindServerError Kind = "server-error"
)

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case KindComplete:
		return http.StatusOK
	case KindInvalidRequest, KindClientError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Response is the outcome of one dispatched call.
//
// It marshals to one of:
//
//	{"response_type": "complete", "return_value": ...}
//	{"response_type": "invalid-request", "errors": ["..."]}
//	{"response_type": "client-error", "errors": ["...", ...]}
//	{"response_type": "server-error"}
type Response struct {
	Kind Kind
	// ReturnValue is the method's result in wire form, set for KindComplete.
	ReturnValue json.RawMessage
	// Errors is set for KindInvalidRequest and KindClientError.
	Errors []string
}

// Status returns the HTTP status code for the response.
func (r *Response) Status() int {
	return r.Kind.Status()
}

func (r *Response) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindComplete:
		rv := r.ReturnValue
		if len(rv) == 0 {
			rv = json.RawMessage("null")
		}
		return json.Marshal(struct {
			ResponseType Kind            `json:"response_type"`
			ReturnValue  json.RawMessage `json:"return_value"`
		}{r.Kind, rv})
	case KindInvalidRequest, KindClientError:
		errs := r.Errors
		if errs == nil {
			errs = []string{}
		}
		return json.Marshal(struct {
			ResponseType Kind     `json:"response_type"`
			Errors       []string `json:"errors"`
		}{r.Kind, errs})
	default:
		return json.Marshal(struct {
			ResponseType Kind `json:"response_type"`
		}{KindServerError})
	}
}

// Render writes the response as JSON with its status code.
func (r *Response) Render(w http.ResponseWriter, req *http.Request) error {
	jr := endpoint.JSONRenderer{Status: r.Status(), Value: r}
	return jr.Render(w, req)
}

var _ endpoint.Renderer = (*Response)(nil)

func invalidRequest(msg string) *Response {
	return &Response{Kind: KindInvalidRequest, Errors: []string{msg}}
}

func clientError(ce *ClientError) *Response {
	msgs := make([]string, len(ce.Messages))
	copy(msgs, ce.Messages)
	return &Response{Kind: KindClientError, Errors: msgs}
}

func serverError() *Response {
	return &Response{Kind: KindServerError}
}
