package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"chronoly/internal/core"
)

// Snapshot is the complete dataset as a single JSON document. It is the seed format
// of the memory backend and the plaintext of the encrypted file backend.
type Snapshot struct {
	Projects    []core.Project   `json:"projects"`
	TimeEntries []core.TimeEntry `json:"timeEntries"`
}

// LoadSnapshot reads a JSON snapshot from path.
func LoadSnapshot(path string) (Snapshot, error) {
	var s Snapshot
	b, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return s, nil
}

// Clone returns a deep copy so callers can mutate it freely.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Projects:    append([]core.Project(nil), s.Projects...),
		TimeEntries: append([]core.TimeEntry(nil), s.TimeEntries...),
	}
}

// SortProjects orders projects by creation time, oldest first, then by id.
func SortProjects(ps []core.Project) {
	sort.SliceStable(ps, func(i, j int) bool {
		return createdBefore(ps[i].CreatedAt, ps[i].ID, ps[j].CreatedAt, ps[j].ID)
	})
}

// SortTimeEntries orders entries by creation time, oldest first, then by id.
func SortTimeEntries(es []core.TimeEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		return createdBefore(es[i].CreatedAt, es[i].ID, es[j].CreatedAt, es[j].ID)
	})
}

func createdBefore(a time.Time, aID string, b time.Time, bID string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aID < bID
}
