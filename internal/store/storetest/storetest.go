// Package storetest holds the behavioural contract every store.EntityStore must meet.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoly/internal/core"
	"chronoly/internal/store"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.EntityStore

var base = time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

func project(id string, created time.Duration) core.Project {
	return core.Project{
		ID:         id,
		Name:       "Project " + id,
		HourlyRate: 42.5,
		Color:      "#10b981",
		CreatedAt:  base.Add(created),
	}
}

func timeEntry(id, projectID string, created time.Duration) core.TimeEntry {
	return core.TimeEntry{
		ID:          id,
		ProjectID:   projectID,
		StartTime:   base.Add(created),
		EndTime:     base.Add(created + 90*time.Minute),
		Description: "work on " + id,
		IsAutomatic: created%2 == 0,
		CreatedAt:   base.Add(created),
	}
}

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		ps, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Empty(t, ps)

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, es)

		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("projects round trip in creation order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.InsertProject(ctx, project("b", 2*time.Minute)))
		require.NoError(t, s.InsertProject(ctx, project("a", time.Minute)))
		require.NoError(t, s.InsertProject(ctx, project("c", 3*time.Minute)))

		ps, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, ps, 3)
		assert.Equal(t, []string{"a", "b", "c"}, projectIDs(ps))
		assertProjectEqual(t, project("a", time.Minute), ps[0])

		got, err := s.GetProject(ctx, "b")
		require.NoError(t, err)
		assertProjectEqual(t, project("b", 2*time.Minute), got)
	})

	t.Run("get unknown project", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetProject(context.Background(), "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("delete project", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.InsertProject(ctx, project("a", 0)))
		require.NoError(t, s.InsertProject(ctx, project("b", time.Second)))

		require.NoError(t, s.DeleteProject(ctx, "a"))
		assert.ErrorIs(t, s.DeleteProject(ctx, "a"), core.ErrNotFound)

		ps, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, projectIDs(ps))
	})

	t.Run("time entries round trip in creation order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.InsertProject(ctx, project("p", 0)))

		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("e2", "p", 2*time.Hour)))
		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("e1", "p", time.Hour)))

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		require.Len(t, es, 2)
		assert.Equal(t, []string{"e1", "e2"}, entryIDs(es))
		assertEntryEqual(t, timeEntry("e1", "p", time.Hour), es[0])
		assertEntryEqual(t, timeEntry("e2", "p", 2*time.Hour), es[1])
	})

	t.Run("delete time entry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.InsertProject(ctx, project("p", 0)))
		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("e1", "p", time.Hour)))

		require.NoError(t, s.DeleteTimeEntry(ctx, "e1"))
		assert.ErrorIs(t, s.DeleteTimeEntry(ctx, "e1"), core.ErrNotFound)

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		assert.Empty(t, es)
	})

	t.Run("delete time entries by project", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.InsertProject(ctx, project("p1", 0)))
		require.NoError(t, s.InsertProject(ctx, project("p2", time.Second)))
		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("a", "p1", time.Hour)))
		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("b", "p2", 2*time.Hour)))
		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("c", "p1", 3*time.Hour)))

		n, err := s.DeleteTimeEntriesByProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.DeleteTimeEntriesByProject(ctx, "unknown")
		require.NoError(t, err)
		assert.Zero(t, n)

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, entryIDs(es))
	})

	t.Run("equal creation times order by id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, id := range []string{"z", "a", "m"} {
			require.NoError(t, s.InsertProject(ctx, project(id, time.Minute)))
			require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("e-"+id, id, time.Minute)))
		}

		ps, err := s.ListProjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "m", "z"}, projectIDs(ps))

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"e-a", "e-m", "e-z"}, entryIDs(es))
	})

	t.Run("duplicate ids are rejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		orig := project("p", time.Minute)
		require.NoError(t, s.InsertProject(ctx, orig))
		dup := project("p", 2*time.Minute)
		dup.Name = "replacement"
		assert.ErrorIs(t, s.InsertProject(ctx, dup), core.ErrStoreUnavailable)

		got, err := s.GetProject(ctx, "p")
		require.NoError(t, err)
		assertProjectEqual(t, orig, got)

		require.NoError(t, s.InsertTimeEntry(ctx, timeEntry("e", "p", time.Minute)))
		assert.ErrorIs(t, s.InsertTimeEntry(ctx, timeEntry("e", "p", 2*time.Minute)), core.ErrStoreUnavailable)

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, es, 1)
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.InsertProject(ctx, project("p", 0)))

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.InsertTimeEntry(ctx, timeEntry(fmt.Sprintf("e%02d", i), "p", time.Duration(i)*time.Minute))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		es, err := s.ListTimeEntries(ctx)
		require.NoError(t, err)
		assert.Len(t, es, n)
	})
}

func projectIDs(ps []core.Project) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func entryIDs(es []core.TimeEntry) []string {
	ids := make([]string, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}
	return ids
}

func assertProjectEqual(t *testing.T, want, got core.Project) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.HourlyRate, got.HourlyRate)
	assert.Equal(t, want.Color, got.Color)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %s got %s", want.CreatedAt, got.CreatedAt)
}

func assertEntryEqual(t *testing.T, want, got core.TimeEntry) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.ProjectID, got.ProjectID)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.IsAutomatic, got.IsAutomatic)
	assert.True(t, want.StartTime.Equal(got.StartTime), "startTime: want %s got %s", want.StartTime, got.StartTime)
	assert.True(t, want.EndTime.Equal(got.EndTime), "endTime: want %s got %s", want.EndTime, got.EndTime)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "createdAt: want %s got %s", want.CreatedAt, got.CreatedAt)
}
