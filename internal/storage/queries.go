package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Project is a row of the projects table.
type Project struct {
	ID         string
	Name       string
	HourlyRate float64
	Color      string
	CreatedAt  string
}

// TimeEntry is a row of the time_entries table.
type TimeEntry struct {
	ID          string
	ProjectID   string
	StartTime   string
	EndTime     string
	Description string
	IsAutomatic bool
	CreatedAt   string
}

const listProjects = `SELECT id, name, hourly_rate, color, created_at FROM projects ORDER BY created_at, id`

func (q *Queries) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx, listProjects)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Project
	for rows.Next() {
		var i Project
		if err := rows.Scan(&i.ID, &i.Name, &i.HourlyRate, &i.Color, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getProject = `SELECT id, name, hourly_rate, color, created_at FROM projects WHERE id = ?`

func (q *Queries) GetProject(ctx context.Context, id string) (Project, error) {
	row := q.db.QueryRowContext(ctx, getProject, id)
	var i Project
	err := row.Scan(&i.ID, &i.Name, &i.HourlyRate, &i.Color, &i.CreatedAt)
	return i, err
}

const createProject = `INSERT INTO projects (id, name, hourly_rate, color, created_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateProject(ctx context.Context, arg Project) error {
	_, err := q.db.ExecContext(ctx, createProject, arg.ID, arg.Name, arg.HourlyRate, arg.Color, arg.CreatedAt)
	return err
}

const deleteProject = `DELETE FROM projects WHERE id = ?`

func (q *Queries) DeleteProject(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteProject, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listTimeEntries = `SELECT id, project_id, start_time, end_time, description, is_automatic, created_at
FROM time_entries ORDER BY created_at, id`

func (q *Queries) ListTimeEntries(ctx context.Context) ([]TimeEntry, error) {
	rows, err := q.db.QueryContext(ctx, listTimeEntries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TimeEntry
	for rows.Next() {
		var i TimeEntry
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.StartTime,
			&i.EndTime,
			&i.Description,
			&i.IsAutomatic,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTimeEntry = `INSERT INTO time_entries (id, project_id, start_time, end_time, description, is_automatic, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTimeEntry(ctx context.Context, arg TimeEntry) error {
	_, err := q.db.ExecContext(ctx, createTimeEntry,
		arg.ID,
		arg.ProjectID,
		arg.StartTime,
		arg.EndTime,
		arg.Description,
		arg.IsAutomatic,
		arg.CreatedAt,
	)
	return err
}

const deleteTimeEntry = `DELETE FROM time_entries WHERE id = ?`

func (q *Queries) DeleteTimeEntry(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTimeEntry, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteTimeEntriesByProject = `DELETE FROM time_entries WHERE project_id = ?`

func (q *Queries) DeleteTimeEntriesByProject(ctx context.Context, projectID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTimeEntriesByProject, projectID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
