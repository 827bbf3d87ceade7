package endpoint

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"net/http"
)

// HTMLTemplateRenderer renders an html/template into the response.
//
// Template is required. Name is optional; when set, ExecuteTemplate is used.
// Values is passed as the template data.
//
// Content-Type defaults to "text/html; charset=utf-8" unless already set.
type HTMLTemplateRenderer struct {
	Status   int
	Template *template.Template
	Name     string
	Values   any
}

func (hr *HTMLTemplateRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	// Execute into a buffer so that a template error can still become a 500.
	var buf bytes.Buffer
	if err := ExecuteHTML(&buf, hr.Template, hr.Name, hr.Values); err != nil {
		return err
	}

	setContentType(w, "text/html; charset=utf-8")
	status := hr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	_, err := io.Copy(w, &buf)
	return err
}

// ExecuteHTML executes tmpl (or the template called name within it) into w.
func ExecuteHTML(w io.Writer, tmpl *template.Template, name string, values any) error {
	if tmpl == nil {
		return errors.New("endpoint: nil html/template")
	}
	if name != "" {
		return tmpl.ExecuteTemplate(w, name, values)
	}
	return tmpl.Execute(w, values)
}
