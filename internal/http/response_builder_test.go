package http

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusAccepted).
		Header("X-Test", "1").
		BodyText("ok").
		Write(w)

	if w.Code != http.StatusAccepted {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusAccepted)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestResponseBuilder_Render(t *testing.T) {
	tmpl := template.Must(template.New("page.html").Parse(`<p>{{.}}</p>`))

	w := httptest.NewRecorder()
	b := NewResponse()
	if err := b.Render(tmpl, "page.html", "<b>x</b>"); err != nil {
		t.Fatal(err)
	}
	b.Write(w)
	if got := w.Body.String(); got != "<p>&lt;b&gt;x&lt;/b&gt;</p>" {
		t.Errorf("Body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestResponseBuilder_RenderFailureWritesNothing(t *testing.T) {
	tmpl := template.Must(template.New("page.html").Parse(`{{.Missing}}`))

	b := NewResponse()
	if err := b.Render(tmpl, "page.html", 42); err == nil {
		t.Fatal("expected template error")
	}
	if err := b.Render(tmpl, "nope.html", nil); err == nil {
		t.Fatal("expected unknown template error")
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *ResponseBuilder
		status  int
	}{
		{"bad request", BadRequestError("<oops>"), http.StatusBadRequest},
		{"internal", InternalServerError("<oops>"), http.StatusInternalServerError},
		{"custom", ErrorResponse(http.StatusTeapot, "<oops>"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.status {
				t.Errorf("Status = %d, want %d", w.Code, tt.status)
			}
			if !strings.Contains(w.Body.String(), "&lt;oops&gt;") {
				t.Errorf("message not escaped: %s", w.Body.String())
			}
		})
	}
}
