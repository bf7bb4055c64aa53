// Package kv is an EntityStore backed by an embedded Badger key-value database.
// Records are stored as JSON under "project:<id>" and "entry:<id>" keys.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"

	"chronoly/internal/core"
	"chronoly/internal/store"
)

const (
	projectPrefix = "project:"
	entryPrefix   = "entry:"
)

// Options configures the database connection.
type Options struct {
	// Path is the database directory. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// DefaultPath returns the default database directory under the XDG data home.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "chronoly", "badger")
}

type Store struct {
	db *badger.DB
}

var _ store.EntityStore = (*Store)(nil)

// Open opens or creates a database described by opts.
func Open(opts Options) (*Store, error) {
	var bo badger.Options
	if opts.InMemory || opts.Path == "" {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		bo = badger.DefaultOptions(opts.Path)
	}
	bo = bo.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return &core.StoreError{Op: "ping", Err: errors.New("badger database is closed")}
	}
	return nil
}

func (s *Store) ListProjects(ctx context.Context) ([]core.Project, error) {
	ps, err := listByPrefix[core.Project](ctx, s.db, projectPrefix)
	if err != nil {
		return nil, &core.StoreError{Op: "list projects", Err: err}
	}
	store.SortProjects(ps)
	return ps, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (core.Project, error) {
	var p core.Project
	if err := ctx.Err(); err != nil {
		return p, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(projectPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return p, core.NotFound("project", id)
	}
	if err != nil {
		return p, &core.StoreError{Op: "get project", Err: err}
	}
	return p, nil
}

func (s *Store) InsertProject(ctx context.Context, p core.Project) error {
	if err := insert(ctx, s.db, projectPrefix+p.ID, p); err != nil {
		return &core.StoreError{Op: "insert project", Err: err}
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.delete(ctx, projectPrefix+id, "project", id)
}

func (s *Store) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	es, err := listByPrefix[core.TimeEntry](ctx, s.db, entryPrefix)
	if err != nil {
		return nil, &core.StoreError{Op: "list time entries", Err: err}
	}
	store.SortTimeEntries(es)
	return es, nil
}

func (s *Store) InsertTimeEntry(ctx context.Context, e core.TimeEntry) error {
	if err := insert(ctx, s.db, entryPrefix+e.ID, e); err != nil {
		return &core.StoreError{Op: "insert time entry", Err: err}
	}
	return nil
}

func (s *Store) DeleteTimeEntry(ctx context.Context, id string) error {
	return s.delete(ctx, entryPrefix+id, "time entry", id)
}

func (s *Store) DeleteTimeEntriesByProject(ctx context.Context, projectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		removed = 0
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		prefix := []byte(entryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e core.TimeEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				it.Close()
				return err
			}
			if e.ProjectID == projectID {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, &core.StoreError{Op: "delete time entries by project", Err: err}
	}
	return removed, nil
}

func (s *Store) delete(ctx context.Context, key, entity, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.NotFound(entity, id)
	}
	if err != nil {
		return &core.StoreError{Op: "delete " + entity, Err: err}
	}
	return nil
}

// insert stores v under key. An existing key is an error, never overwritten.
func insert(ctx context.Context, db *badger.DB, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			return fmt.Errorf("duplicate key %q", key)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set([]byte(key), data)
	})
}

func listByPrefix[T any](ctx context.Context, db *badger.DB, prefix string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var results []T
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			results = append(results, v)
		}
		return nil
	})
	return results, err
}
