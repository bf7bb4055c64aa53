package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"time"

	"chronoly/internal/core"
	"chronoly/internal/log"
)

// templates holds one parsed set per page, each sharing layout.html.
type templates struct {
	pages map[string]*template.Template
}

func loadTemplates(fsys fs.FS, loc *time.Location) (*templates, error) {
	funcs := template.FuncMap{
		"currency": core.FormatCurrency,
		"duration": core.FormatDuration,
		"date": func(t time.Time) string {
			return t.In(loc).Format("Mon 2 Jan 2006")
		},
		"clock": func(t time.Time) string {
			return t.In(loc).Format("15:04")
		},
		"isoDate": func(t time.Time) string {
			return t.In(loc).Format(dateLayout)
		},
	}

	layout, err := fs.ReadFile(fsys, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	base, err := template.New("layout.html").Funcs(funcs).Parse(string(layout))
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	t := &templates{pages: make(map[string]*template.Template)}
	for _, name := range names {
		page := path.Base(name)
		if page == "layout.html" {
			continue
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := clone.ParseFS(fsys, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		t.pages[page] = clone
	}
	return t, nil
}

// page is the data every template receives.
type page struct {
	Title  string
	Nav    string
	Authed bool
	Error  string
	Data   any
}

// render executes the named page into a buffer first so a template failure never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			"template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	t, ok := s.templates.pages[name]
	if !ok {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Unknown template", "template", name)
		http.Error(w, genericErrorMessage, http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"error", err,
			"template", name)
		http.Error(w, genericErrorMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.render(w, r, status, "error.html", page{Title: http.StatusText(status), Error: message, Authed: isAuthed(r)})
}
