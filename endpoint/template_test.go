package endpoint

import (
	"bytes"
	htmltmpl "html/template"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTMLTemplateRenderer_Execute(t *testing.T) {
	tmpl := htmltmpl.Must(htmltmpl.New("base").Parse("<p>{{.Name}}</p>"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	renderer := HTMLTemplateRenderer{Template: tmpl, Values: map[string]string{"Name": "<ok>"}}
	if err := renderer.Render(rec, req); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	resp := rec.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Fatalf("expected Content-Type %q, got %q", "text/html; charset=utf-8", got)
	}
	if got := rec.Body.String(); got != "<p>&lt;ok&gt;</p>" {
		t.Fatalf("expected escaped body, got %q", got)
	}
}

func TestHTMLTemplateRenderer_ExecuteTemplateByName(t *testing.T) {
	tmpl := htmltmpl.Must(htmltmpl.New("one").Parse("ONE"))
	htmltmpl.Must(tmpl.New("two").Parse("TWO"))

	rec := httptest.NewRecorder()
	renderer := HTMLTemplateRenderer{Status: http.StatusAccepted, Template: tmpl, Name: "two"}
	if err := renderer.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if got := rec.Body.String(); got != "TWO" {
		t.Fatalf("expected body %q, got %q", "TWO", got)
	}
}

func TestHTMLTemplateRenderer_ExecError_NothingWritten(t *testing.T) {
	tmpl := htmltmpl.Must(htmltmpl.New("base").Parse("before {{.Missing.Field}} after"))

	rec := httptest.NewRecorder()
	renderer := HTMLTemplateRenderer{Template: tmpl, Values: map[string]any{"Missing": 3}}
	if err := renderer.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Fatal("expected execution error")
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected nothing written, got %q", rec.Body.String())
	}
}

func TestExecuteHTML_NilTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := ExecuteHTML(&buf, nil, "", nil); err == nil {
		t.Fatal("expected error for nil template")
	}
	renderer := HTMLTemplateRenderer{}
	if err := renderer.Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Fatal("expected error for renderer without template")
	}
}
