// Package store defines the persistence port for projects and time entries.
// Implementations live in sub-packages (memory, kv, file) and in internal/storage (sqlite).
package store

import (
	"context"

	"chronoly/internal/core"
)

// Ports for outbound adapters.
type (
	// ProjectStore persists projects.
	ProjectStore interface {
		// ListProjects returns all projects ordered by creation time, oldest first.
		ListProjects(ctx context.Context) ([]core.Project, error)
		// GetProject returns core.ErrNotFound when the id is unknown.
		GetProject(ctx context.Context, id string) (core.Project, error)
		InsertProject(ctx context.Context, p core.Project) error
		// DeleteProject returns core.ErrNotFound when the id is unknown.
		DeleteProject(ctx context.Context, id string) error
	}

	// TimeEntryStore persists time entries.
	TimeEntryStore interface {
		// ListTimeEntries returns all entries ordered by creation time, oldest first.
		ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error)
		InsertTimeEntry(ctx context.Context, e core.TimeEntry) error
		// DeleteTimeEntry returns core.ErrNotFound when the id is unknown.
		DeleteTimeEntry(ctx context.Context, id string) error
		// DeleteTimeEntriesByProject removes every entry of a project and reports how many went.
		DeleteTimeEntriesByProject(ctx context.Context, projectID string) (int, error)
	}

	// ProjectCascader removes a project and its entries in one atomic step. The
	// tracker prefers it over the two separate deletes when the store provides it.
	ProjectCascader interface {
		// DeleteProjectCascade returns core.ErrNotFound when the id is unknown and
		// otherwise how many entries went with the project.
		DeleteProjectCascade(ctx context.Context, id string) (int, error)
	}

	// EntityStore is the full persistence port used by the tracker service.
	EntityStore interface {
		ProjectStore
		TimeEntryStore
		// Ping reports whether the backing store is reachable.
		Ping(ctx context.Context) error
		Close() error
	}
)
