package ajax

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/mnehpets/ajaxview/endpoint"
	"github.com/mnehpets/ajaxview/logging"
	"github.com/mnehpets/ajaxview/middleware"
)

// DefaultFunctionName is the global the client helper installs itself as.
const DefaultFunctionName = "ajax"

//go:embed templates/ajax_headers.html
var templateFS embed.FS

var headTemplate = template.Must(template.ParseFS(templateFS, "templates/ajax_headers.html"))

// TokenSource returns the CSRF token to embed in the client helper.
type TokenSource func(r *http.Request) (string, error)

// ContextTokenSource reads the token a middleware.CSRFProcessor put in the
// request context. Without one it returns "".
func ContextTokenSource(r *http.Request) (string, error) {
	token, _ := middleware.CSRFTokenFromContext(r.Context())
	return token, nil
}

// HeadData is the client helper template's data.
type HeadData struct {
	CSRFToken    string
	FunctionName string
	// ScriptNonce is the CSP nonce for the helper's <script> tag, if any.
	ScriptNonce string
	// Methods maps method names to comma-joined parameter names.
	Methods map[string]string
}

// PageData is passed to a View's Page template.
type PageData struct {
	// AjaxView is the client helper markup, ready to place in <head>.
	AjaxView template.HTML
	Request  *http.Request
}

// View serves a handler's registered methods on a single URL.
//
// POST requests carry a call envelope and get a JSON response. GET and
// HEAD render Page, or the client helper markup alone when Page is nil.
//
//	var calcMethods = ajax.NewRegistry(
//		ajax.Method("sum_numbers", (*Calc).SumNumbers, "numbers"),
//	)
//
//	v := &ajax.View{Registry: calcMethods, Handler: &Calc{}}
//	mux.Handle("/calc", v.HTTPHandler(csrf))
type View struct {
	Registry *Registry
	// Handler is the instance methods are invoked on.
	Handler any
	// FunctionName names the client helper global. Default "ajax".
	FunctionName string
	// Sink receives unexpected failures. Default logging.Default().
	Sink logging.Sink
	// CSRF supplies the token for the client helper. Default ContextTokenSource.
	CSRF TokenSource
	// Page is rendered for GET requests with a PageData value.
	Page *template.Template
	// PageName selects a named template within Page.
	PageName string
	// MaxBodyBytes bounds call envelopes. Default endpoint.DefaultBodyLimit.
	MaxBodyBytes int64
}

func (v *View) functionName() string {
	if v.FunctionName == "" {
		return DefaultFunctionName
	}
	return v.FunctionName
}

// sink returns the view's sink, scoped to the request id when there is one.
func (v *View) sink(r *http.Request) logging.Sink {
	s := v.Sink
	if s == nil {
		s = logging.Default()
	}
	if rs, ok := s.(logging.RequestScoped); ok {
		if id, ok := middleware.RequestIDFromContext(r.Context()); ok {
			return rs.WithRequestID(id)
		}
	}
	return s
}

// Dispatch handles one raw call envelope against the view's handler.
func (v *View) Dispatch(r *http.Request, body []byte) *Response {
	return Dispatch(r.Context(), body, v.Registry, v.Registry.Bind(v.Handler), v.sink(r))
}

// PageHead renders the client helper markup.
func (v *View) PageHead(r *http.Request) (template.HTML, error) {
	source := v.CSRF
	if source == nil {
		source = ContextTokenSource
	}
	token, err := source(r)
	if err != nil {
		return "", err
	}

	nonce, _ := middleware.ScriptNonceFromContext(r.Context())

	var buf bytes.Buffer
	err = endpoint.ExecuteHTML(&buf, headTemplate, "", HeadData{
		CSRFToken:    token,
		FunctionName: v.functionName(),
		ScriptNonce:  nonce,
		Methods:      v.Registry.ClientMethods(),
	})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Endpoint is the view's endpoint.EndpointFunc.
func (v *View) Endpoint(w http.ResponseWriter, r *http.Request) (endpoint.Renderer, error) {
	switch r.Method {
	case http.MethodPost:
		body, err := endpoint.ReadBody(w, r, v.MaxBodyBytes)
		if err != nil {
			return nil, err
		}
		return v.Dispatch(r, body), nil

	case http.MethodGet, http.MethodHead:
		head, err := v.PageHead(r)
		if err != nil {
			return nil, err
		}
		if v.Page == nil {
			return &endpoint.HTMLRenderer{Body: string(head)}, nil
		}
		return &endpoint.HTMLTemplateRenderer{
			Template: v.Page,
			Name:     v.PageName,
			Values:   PageData{AjaxView: head, Request: r},
		}, nil

	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		return nil, endpoint.Error(http.StatusMethodNotAllowed, "", nil)
	}
}

// HTTPHandler wraps the view in an endpoint.Handler running processors first,
// typically a middleware.CSRFProcessor.
func (v *View) HTTPHandler(processors ...endpoint.Processor) http.Handler {
	return endpoint.Handler(v.Endpoint, processors...)
}
