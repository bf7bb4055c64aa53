package http

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chronoly/internal/auth"
	"chronoly/internal/core"
	"chronoly/internal/log"
)

func isAuthed(r *http.Request) bool {
	_, ok := auth.SessionFromContext(r.Context())
	return ok
}

// entryRow pairs an entry with its project for display. Project is zero for orphans.
type entryRow struct {
	Entry   core.TimeEntry
	Project core.Project
	Hours   float64
}

type totalRow struct {
	Project core.Project
	Total   core.WeeklyTotal
}

type dashboardView struct {
	WeekStart     time.Time
	WeekEnd       time.Time
	PrevWeek      string
	NextWeek      string
	Rows          []totalRow
	TotalHours    float64
	TotalEarnings float64
	Recent        []entryRow
}

type projectForm struct {
	Name       string
	HourlyRate string
	Color      string
}

type entryForm struct {
	Projects    []core.Project
	ProjectID   string
	StartTime   string
	EndTime     string
	Description string
	IsAutomatic bool
}

func entryRows(entries []core.TimeEntry, index map[string]core.Project) []entryRow {
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, entryRow{
			Entry:   e,
			Project: index[e.ProjectID],
			Hours:   core.HoursBetween(e.StartTime, e.EndTime),
		})
	}
	return rows
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseWeekParam(r.URL.Query(), s.now(), s.loc)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	d, err := s.tracker.Dashboard(ctx, ref)
	if err != nil {
		s.pageFailure(w, r, "dashboard", err)
		return
	}

	index := core.ProjectIndex(d.Projects)
	view := dashboardView{
		WeekStart:     d.WeekStart,
		WeekEnd:       d.WeekEnd,
		PrevWeek:      d.WeekStart.AddDate(0, 0, -7).Format(dateLayout),
		NextWeek:      d.WeekStart.AddDate(0, 0, 7).Format(dateLayout),
		TotalHours:    d.TotalHours,
		TotalEarnings: d.TotalEarnings,
		Recent:        entryRows(d.RecentEntries, index),
	}
	for _, t := range d.Totals {
		view.Rows = append(view.Rows, totalRow{Project: index[t.ProjectID], Total: t})
	}

	s.render(w, r, http.StatusOK, "dashboard.html", page{Title: "Dashboard", Nav: "dashboard", Authed: true, Data: view})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	projects, err := s.tracker.ListProjects(ctx)
	if err != nil {
		s.pageFailure(w, r, "list projects", err)
		return
	}
	s.render(w, r, http.StatusOK, "projects.html", page{Title: "Projects", Nav: "projects", Authed: true, Data: projects})
}

func (s *Server) handleNewProject(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "project_new.html", page{
		Title:  "New project",
		Nav:    "projects",
		Authed: true,
		Data:   projectForm{Color: "#3b82f6"},
	})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	form := projectForm{
		Name:       sanitizeInput(r.PostForm.Get("name")),
		HourlyRate: sanitizeInput(r.PostForm.Get("hourlyRate")),
		Color:      sanitizeInput(r.PostForm.Get("color")),
	}

	in, err := ParseProjectForm(r.PostForm)
	if err == nil {
		ctx, cancel := storeContext(r)
		defer cancel()
		_, err = s.tracker.CreateProject(ctx, in)
	}
	if err != nil {
		if core.IsClientError(err) {
			s.render(w, r, http.StatusUnprocessableEntity, "project_new.html", page{
				Title: "New project", Nav: "projects", Authed: true, Error: err.Error(), Data: form,
			})
			return
		}
		s.pageFailure(w, r, "create project", err)
		return
	}

	s.metrics.projectsCreated.Add(1)
	redirect(w, r, "/projects")
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := storeContext(r)
	defer cancel()

	removed, err := s.tracker.DeleteProject(ctx, id)
	switch {
	case err == nil:
		s.metrics.projectsDeleted.Add(1)
		log.FromContext(r.Context()).DebugContext(r.Context(), "Project removed from page",
			log.FieldProjectID, id,
			log.FieldRemoved, removed)
	case errors.Is(err, core.ErrNotFound):
		// already gone
	default:
		s.pageFailure(w, r, "delete project", err)
		return
	}
	redirect(w, r, "/projects")
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	projects, err := s.tracker.ListProjects(ctx)
	if err != nil {
		s.pageFailure(w, r, "list projects", err)
		return
	}
	entries, err := s.tracker.ListTimeEntries(ctx)
	if err != nil {
		s.pageFailure(w, r, "list time entries", err)
		return
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.After(entries[j].StartTime)
	})
	s.render(w, r, http.StatusOK, "entries.html", page{
		Title:  "Time entries",
		Nav:    "entries",
		Authed: true,
		Data:   entryRows(entries, core.ProjectIndex(projects)),
	})
}

func (s *Server) handleNewEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	projects, err := s.tracker.ListProjects(ctx)
	if err != nil {
		s.pageFailure(w, r, "list projects", err)
		return
	}

	now := s.now().In(s.loc).Truncate(time.Minute)
	s.render(w, r, http.StatusOK, "entry_new.html", page{
		Title:  "Log time",
		Nav:    "entries",
		Authed: true,
		Data: entryForm{
			Projects:  projects,
			ProjectID: r.URL.Query().Get("project"),
			StartTime: now.Add(-time.Hour).Format(datetimeLocalLayout),
			EndTime:   now.Format(datetimeLocalLayout),
		},
	})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}
	form := entryForm{
		ProjectID:   sanitizeInput(r.PostForm.Get("projectId")),
		StartTime:   sanitizeInput(r.PostForm.Get("startTime")),
		EndTime:     sanitizeInput(r.PostForm.Get("endTime")),
		Description: sanitizeInput(r.PostForm.Get("description")),
		IsAutomatic: formBool(r.PostForm.Get("isAutomatic")),
	}

	ctx, cancel := storeContext(r)
	defer cancel()

	in, err := ParseEntryForm(r.PostForm, s.loc)
	if err == nil {
		_, err = s.tracker.CreateTimeEntry(ctx, in)
	}
	if err != nil {
		if core.IsClientError(err) {
			// The project list is only needed to redraw the form.
			form.Projects, _ = s.tracker.ListProjects(ctx)
			s.render(w, r, http.StatusUnprocessableEntity, "entry_new.html", page{
				Title: "Log time", Nav: "entries", Authed: true, Error: err.Error(), Data: form,
			})
			return
		}
		s.pageFailure(w, r, "create time entry", err)
		return
	}

	s.metrics.entriesCreated.Add(1)
	redirect(w, r, "/entries")
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := storeContext(r)
	defer cancel()

	err := s.tracker.DeleteTimeEntry(ctx, id)
	switch {
	case err == nil:
		s.metrics.entriesDeleted.Add(1)
	case errors.Is(err, core.ErrNotFound):
	default:
		s.pageFailure(w, r, "delete time entry", err)
		return
	}

	redirect(w, r, localPath(r.FormValue("next"), "/entries"))
}

// localPath returns next when it is a path on this site, fallback otherwise.
func localPath(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return fallback
	}
	return next
}

// pageFailure renders err for a page request. Client errors show their message,
// anything else is logged and shown generically.
func (s *Server) pageFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.metrics.serverErrors.Add(1)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Page request failed", err, op, log.NewFields().WithRequestID(requestID(r)))
		s.renderError(w, r, status, genericErrorMessage)
		return
	}
	s.renderError(w, r, status, err.Error())
}
