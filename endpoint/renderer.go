package endpoint

import "net/http"

// StringRenderer writes a string as the response body.
//
// When ContentType is empty, it defaults to "text/plain; charset=utf-8".
type StringRenderer struct {
	Status      int
	Body        string
	ContentType string
}

// setContentType sets Content-Type unless an outer renderer already did.
// An empty contentType means "text/plain; charset=utf-8".
func setContentType(w http.ResponseWriter, contentType string) {
	if w.Header().Get("Content-Type") == "" {
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
	}
}

// Render implements Renderer for StringRenderer.
func (sr *StringRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	setContentType(w, sr.ContentType)
	status := sr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if sr.Body == "" {
		return nil
	}
	_, err := w.Write([]byte(sr.Body))
	return err
}

// HTMLRenderer writes an HTML fragment or document.
type HTMLRenderer struct {
	Status int
	Body   string
}

// Render implements Renderer for HTMLRenderer.
func (hr *HTMLRenderer) Render(w http.ResponseWriter, r *http.Request) error {
	sr := StringRenderer{Status: hr.Status, Body: hr.Body, ContentType: "text/html; charset=utf-8"}
	return sr.Render(w, r)
}
