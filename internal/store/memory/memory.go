// Package memory is an in-process EntityStore. It is the default backend for local
// development and tests and holds nothing across restarts.
package memory

import (
	"context"
	"fmt"
	"sync"

	"chronoly/internal/core"
	"chronoly/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	projects []core.Project
	entries  []core.TimeEntry
}

var _ store.EntityStore = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromSnapshot builds a store preloaded with s. The snapshot is copied.
func NewFromSnapshot(s store.Snapshot) *Store {
	c := s.Clone()
	store.SortProjects(c.Projects)
	store.SortTimeEntries(c.TimeEntries)
	return &Store{projects: c.Projects, entries: c.TimeEntries}
}

// NewFromFile seeds the store from a JSON snapshot on disk. An empty path yields an
// empty store.
func NewFromFile(path string) (*Store, error) {
	if path == "" {
		return New(), nil
	}
	s, err := store.LoadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("seed memory store: %w", err)
	}
	return NewFromSnapshot(s), nil
}

// Snapshot returns a copy of the current dataset.
func (s *Store) Snapshot() store.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Snapshot{Projects: s.projects, TimeEntries: s.entries}.Clone()
}

func (s *Store) ListProjects(ctx context.Context) ([]core.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Project(nil), s.projects...), nil
}

func (s *Store) GetProject(ctx context.Context, id string) (core.Project, error) {
	if err := ctx.Err(); err != nil {
		return core.Project{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return core.Project{}, core.NotFound("project", id)
}

func (s *Store) InsertProject(ctx context.Context, p core.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.projects {
		if existing.ID == p.ID {
			return &core.StoreError{Op: "insert project", Err: fmt.Errorf("duplicate id %q", p.ID)}
		}
	}
	s.projects = append(s.projects, p)
	store.SortProjects(s.projects)
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.projects {
		if p.ID == id {
			s.projects = append(s.projects[:i:i], s.projects[i+1:]...)
			return nil
		}
	}
	return core.NotFound("project", id)
}

func (s *Store) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.TimeEntry(nil), s.entries...), nil
}

func (s *Store) InsertTimeEntry(ctx context.Context, e core.TimeEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return &core.StoreError{Op: "insert time entry", Err: fmt.Errorf("duplicate id %q", e.ID)}
		}
	}
	s.entries = append(s.entries, e)
	store.SortTimeEntries(s.entries)
	return nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return nil
		}
	}
	return core.NotFound("time entry", id)
}

func (s *Store) DeleteTimeEntriesByProject(ctx context.Context, projectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0:0]
	removed := 0
	for _, e := range s.entries {
		if e.ProjectID == projectID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}
