package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		JSON(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
	if strings.TrimSpace(w.Body.String()) != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().JSON(make(chan int)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), genericErrorMessage) {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_Cookie(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().Cookie(&http.Cookie{Name: "a", Value: "b"}).Text("ok").Write(w)

	if got := w.Header().Get("Set-Cookie"); !strings.HasPrefix(got, "a=b") {
		t.Errorf("Set-Cookie = %q", got)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path, accept string
		want         bool
	}{
		{"/api/projects", "", true},
		{"/projects", "text/html", false},
		{"/projects", "application/json", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		r.Header.Set("Accept", tt.accept)
		if got := wantsJSON(r); got != tt.want {
			t.Errorf("wantsJSON(%s, %q) = %v, want %v", tt.path, tt.accept, got, tt.want)
		}
	}
}

func TestLocalPath(t *testing.T) {
	tests := map[string]string{
		"/":                "/",
		"/entries?x=1":     "/entries?x=1",
		"//evil.example":   "/entries",
		"https://evil.com": "/entries",
		"":                 "/entries",
	}
	for in, want := range tests {
		if got := localPath(in, "/entries"); got != want {
			t.Errorf("localPath(%q) = %q, want %q", in, got, want)
		}
	}
}
