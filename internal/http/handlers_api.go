package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chronoly/internal/core"
)

type totalsResponse struct {
	WeekStart     time.Time          `json:"weekStart"`
	WeekEnd       time.Time          `json:"weekEnd"`
	Totals        []core.WeeklyTotal `json:"totals"`
	TotalHours    float64            `json:"totalHours"`
	TotalEarnings float64            `json:"totalEarnings"`
}

type deleteResponse struct {
	Success        bool `json:"success"`
	RemovedEntries *int `json:"removedEntries,omitempty"`
}

func (s *Server) handleAPIListProjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	projects, err := s.tracker.ListProjects(ctx)
	if err != nil {
		s.writeAPIError(w, r, "list projects", err)
		return
	}
	if projects == nil {
		projects = []core.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleAPICreateProject(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeProjectJSON(r)
	if err != nil {
		s.writeAPIError(w, r, "create project", err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	p, err := s.tracker.CreateProject(ctx, in)
	if err != nil {
		s.writeAPIError(w, r, "create project", err)
		return
	}

	s.metrics.projectsCreated.Add(1)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleAPIDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := idParam(r, chi.URLParam(r, "id"))
	ctx, cancel := storeContext(r)
	defer cancel()

	removed, err := s.tracker.DeleteProject(ctx, id)
	if err != nil {
		s.writeAPIError(w, r, "delete project", err)
		return
	}

	s.metrics.projectsDeleted.Add(1)
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, RemovedEntries: &removed})
}

func (s *Server) handleAPIListEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	entries, err := s.tracker.ListTimeEntries(ctx)
	if err != nil {
		s.writeAPIError(w, r, "list time entries", err)
		return
	}
	if entries == nil {
		entries = []core.TimeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAPICreateEntry(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeEntryJSON(r, s.loc)
	if err != nil {
		s.writeAPIError(w, r, "create time entry", err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	e, err := s.tracker.CreateTimeEntry(ctx, in)
	if err != nil {
		s.writeAPIError(w, r, "create time entry", err)
		return
	}

	s.metrics.entriesCreated.Add(1)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleAPIDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := idParam(r, chi.URLParam(r, "id"))
	ctx, cancel := storeContext(r)
	defer cancel()

	if err := s.tracker.DeleteTimeEntry(ctx, id); err != nil {
		s.writeAPIError(w, r, "delete time entry", err)
		return
	}

	s.metrics.entriesDeleted.Add(1)
	writeJSON(w, http.StatusOK, deleteResponse{Success: true})
}

func (s *Server) handleAPITotals(w http.ResponseWriter, r *http.Request) {
	ref, err := ParseWeekParam(r.URL.Query(), s.now(), s.loc)
	if err != nil {
		s.writeAPIError(w, r, "weekly totals", err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	d, err := s.tracker.Dashboard(ctx, ref)
	if err != nil {
		s.writeAPIError(w, r, "weekly totals", err)
		return
	}

	totals := d.Totals
	if totals == nil {
		totals = []core.WeeklyTotal{}
	}
	writeJSON(w, http.StatusOK, totalsResponse{
		WeekStart:     d.WeekStart,
		WeekEnd:       d.WeekEnd,
		Totals:        totals,
		TotalHours:    d.TotalHours,
		TotalEarnings: d.TotalEarnings,
	})
}
