package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoly/internal/core"
	"chronoly/internal/store"
	"chronoly/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.EntityStore {
		return New()
	})
}

func TestNewFromFile(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := store.Snapshot{
		Projects: []core.Project{
			{ID: "late", Name: "Late", HourlyRate: 10, Color: "red", CreatedAt: created.Add(time.Hour)},
			{ID: "early", Name: "Early", HourlyRate: 20, Color: "blue", CreatedAt: created},
		},
		TimeEntries: []core.TimeEntry{
			{ID: "e1", ProjectID: "early", StartTime: created, EndTime: created.Add(time.Hour), CreatedAt: created},
		},
	}
	b, err := json.Marshal(seed)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))

	s, err := NewFromFile(path)
	require.NoError(t, err)

	ps, err := s.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "early", ps[0].ID)

	es, err := s.ListTimeEntries(context.Background())
	require.NoError(t, err)
	assert.Len(t, es, 1)
}

func TestNewFromFile_Errors(t *testing.T) {
	s, err := NewFromFile("")
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = NewFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestListReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertProject(ctx, core.Project{ID: "p", Name: "orig"}))

	ps, err := s.ListProjects(ctx)
	require.NoError(t, err)
	ps[0].Name = "changed"

	got, err := s.GetProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "orig", got.Name)
}

func TestInsertDuplicateID(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InsertProject(ctx, core.Project{ID: "p"}))
	err := s.InsertProject(ctx, core.Project{ID: "p"})
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ListProjects(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
