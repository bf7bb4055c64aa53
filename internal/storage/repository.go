package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chronoly/internal/core"
	"chronoly/internal/store"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as fixed-width UTC text so that lexical order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ store.EntityStore     = (*SQLiteRepository)(nil)
	_ store.ProjectCascader = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers anyway; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.queries.ListProjects(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "list projects", Err: err}
	}
	projects := make([]core.Project, 0, len(rows))
	for _, row := range rows {
		p, err := projectFromRow(row)
		if err != nil {
			return nil, &core.StoreError{Op: "list projects", Err: err}
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	row, err := r.queries.GetProject(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, core.NotFound("project", id)
	}
	if err != nil {
		return core.Project{}, &core.StoreError{Op: "get project", Err: err}
	}
	p, err := projectFromRow(row)
	if err != nil {
		return core.Project{}, &core.StoreError{Op: "get project", Err: err}
	}
	return p, nil
}

func (r *SQLiteRepository) InsertProject(ctx context.Context, p core.Project) error {
	err := r.queries.CreateProject(ctx, Project{
		ID:         p.ID,
		Name:       p.Name,
		HourlyRate: p.HourlyRate,
		Color:      p.Color,
		CreatedAt:  formatTime(p.CreatedAt),
	})
	if err != nil {
		return &core.StoreError{Op: "insert project", Err: err}
	}
	slog.DebugContext(ctx, "Project saved to SQLite", "id", p.ID, "name", p.Name)
	return nil
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	n, err := r.queries.DeleteProject(ctx, id)
	if err != nil {
		return &core.StoreError{Op: "delete project", Err: err}
	}
	if n == 0 {
		return core.NotFound("project", id)
	}
	return nil
}

// DeleteProjectCascade deletes the project and its time entries in one transaction.
func (r *SQLiteRepository) DeleteProjectCascade(ctx context.Context, id string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &core.StoreError{Op: "delete project", Err: err}
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	n, err := q.DeleteProject(ctx, id)
	if err != nil {
		return 0, &core.StoreError{Op: "delete project", Err: err}
	}
	if n == 0 {
		return 0, core.NotFound("project", id)
	}
	removed, err := q.DeleteTimeEntriesByProject(ctx, id)
	if err != nil {
		return 0, &core.StoreError{Op: "delete time entries by project", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &core.StoreError{Op: "commit project delete", Err: err}
	}
	return int(removed), nil
}

func (r *SQLiteRepository) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	rows, err := r.queries.ListTimeEntries(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "list time entries", Err: err}
	}
	entries := make([]core.TimeEntry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromRow(row)
		if err != nil {
			return nil, &core.StoreError{Op: "list time entries", Err: err}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *SQLiteRepository) InsertTimeEntry(ctx context.Context, e core.TimeEntry) error {
	err := r.queries.CreateTimeEntry(ctx, TimeEntry{
		ID:          e.ID,
		ProjectID:   e.ProjectID,
		StartTime:   formatTime(e.StartTime),
		EndTime:     formatTime(e.EndTime),
		Description: e.Description,
		IsAutomatic: e.IsAutomatic,
		CreatedAt:   formatTime(e.CreatedAt),
	})
	if err != nil {
		return &core.StoreError{Op: "insert time entry", Err: err}
	}
	slog.DebugContext(ctx, "Time entry saved to SQLite", "id", e.ID, "project_id", e.ProjectID)
	return nil
}

func (r *SQLiteRepository) DeleteTimeEntry(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTimeEntry(ctx, id)
	if err != nil {
		return &core.StoreError{Op: "delete time entry", Err: err}
	}
	if n == 0 {
		return core.NotFound("time entry", id)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTimeEntriesByProject(ctx context.Context, projectID string) (int, error) {
	n, err := r.queries.DeleteTimeEntriesByProject(ctx, projectID)
	if err != nil {
		return 0, &core.StoreError{Op: "delete time entries by project", Err: err}
	}
	return int(n), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by hand or by other tools
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func projectFromRow(row Project) (core.Project, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Project{}, fmt.Errorf("project %s created_at: %w", row.ID, err)
	}
	return core.Project{
		ID:         row.ID,
		Name:       row.Name,
		HourlyRate: row.HourlyRate,
		Color:      row.Color,
		CreatedAt:  created,
	}, nil
}

func entryFromRow(row TimeEntry) (core.TimeEntry, error) {
	start, err := parseTime(row.StartTime)
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("time entry %s start_time: %w", row.ID, err)
	}
	end, err := parseTime(row.EndTime)
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("time entry %s end_time: %w", row.ID, err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("time entry %s created_at: %w", row.ID, err)
	}
	return core.TimeEntry{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		StartTime:   start,
		EndTime:     end,
		Description: row.Description,
		IsAutomatic: row.IsAutomatic,
		CreatedAt:   created,
	}, nil
}
