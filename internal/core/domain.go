package core

import (
	"strings"
	"time"
)

type (
	// Project is a billable unit of work. Projects are created and deleted, never updated.
	Project struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		HourlyRate float64   `json:"hourlyRate"`
		Color      string    `json:"color"`
		CreatedAt  time.Time `json:"createdAt"`
	}

	// TimeEntry is a span of work logged against a project.
	TimeEntry struct {
		ID          string    `json:"id"`
		ProjectID   string    `json:"projectId"`
		StartTime   time.Time `json:"startTime"`
		EndTime     time.Time `json:"endTime"`
		Description string    `json:"description"`
		IsAutomatic bool      `json:"isAutomatic"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// WeeklyTotal is the derived per-project summary for one calendar week.
	WeeklyTotal struct {
		ProjectID     string    `json:"projectId"`
		TotalHours    float64   `json:"totalHours"`
		TotalEarnings float64   `json:"totalEarnings"`
		WeekStartDate time.Time `json:"weekStartDate"`
	}

	// ProjectInput carries the caller-supplied fields for a new project.
	// HourlyRate is a pointer so that "absent" and "zero" stay distinguishable.
	ProjectInput struct {
		Name       string   `json:"name"`
		HourlyRate *float64 `json:"hourlyRate"`
		Color      string   `json:"color"`
	}

	// TimeEntryInput carries the caller-supplied fields for a new time entry.
	// Zero times are treated as absent.
	TimeEntryInput struct {
		ProjectID   string    `json:"projectId"`
		StartTime   time.Time `json:"startTime"`
		EndTime     time.Time `json:"endTime"`
		Description string    `json:"description"`
		IsAutomatic bool      `json:"isAutomatic"`
	}
)

// Duration returns the wall-clock span of the entry.
func (e TimeEntry) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// NewProject builds a Project from validated input.
func NewProject(id string, in ProjectInput, createdAt time.Time) Project {
	p := Project{
		ID:        id,
		Name:      strings.TrimSpace(in.Name),
		Color:     strings.TrimSpace(in.Color),
		CreatedAt: createdAt,
	}
	if in.HourlyRate != nil {
		p.HourlyRate = *in.HourlyRate
	}
	return p
}

// NewTimeEntry builds a TimeEntry from validated input.
func NewTimeEntry(id string, in TimeEntryInput, createdAt time.Time) TimeEntry {
	return TimeEntry{
		ID:          id,
		ProjectID:   strings.TrimSpace(in.ProjectID),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Description: strings.TrimSpace(in.Description),
		IsAutomatic: in.IsAutomatic,
		CreatedAt:   createdAt,
	}
}

// Float64 returns a pointer to v, handy for building ProjectInput literals.
func Float64(v float64) *float64 {
	return &v
}
