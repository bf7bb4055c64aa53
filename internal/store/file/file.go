// Package file is an EntityStore that keeps the whole dataset in one AES-GCM encrypted
// JSON file. Every mutation rewrites the file atomically.
//
// File layout: magic | salt (16 bytes) | nonce | ciphertext.
package file

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"chronoly/internal/core"
	"chronoly/internal/store"
	"chronoly/internal/store/memory"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 100_000
)

var magic = []byte("CHRONOLY1")

var (
	// ErrEmptyPassphrase is returned when no encryption key is configured.
	ErrEmptyPassphrase = errors.New("encryption passphrase is empty")
	// ErrCorrupt is returned when the file cannot be decoded or authenticated.
	ErrCorrupt = errors.New("data file is corrupt or the passphrase is wrong")
)

type Store struct {
	mu   sync.Mutex
	path string
	salt []byte
	aead cipher.AEAD
	mem  *memory.Store
}

var _ store.EntityStore = (*Store)(nil)

// Open loads the dataset at path, creating an empty one if the file does not exist.
func Open(path, passphrase string) (*Store, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		if s.aead, err = newAEAD(passphrase, s.salt); err != nil {
			return nil, err
		}
		s.mem = memory.New()
		if err := s.persist(s.mem.Snapshot()); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read data file: %w", err)
	}

	if len(raw) < len(magic)+saltSize || !bytes.Equal(raw[:len(magic)], magic) {
		return nil, ErrCorrupt
	}
	s.salt = append([]byte(nil), raw[len(magic):len(magic)+saltSize]...)
	if s.aead, err = newAEAD(passphrase, s.salt); err != nil {
		return nil, err
	}
	snap, err := s.decrypt(raw[len(magic)+saltSize:])
	if err != nil {
		return nil, err
	}
	s.mem = memory.NewFromSnapshot(snap)
	return s, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func (s *Store) decrypt(data []byte) (store.Snapshot, error) {
	var snap store.Snapshot
	n := s.aead.NonceSize()
	if len(data) < n {
		return snap, ErrCorrupt
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], magic)
	if err != nil {
		return snap, ErrCorrupt
	}
	if err := json.Unmarshal(plain, &snap); err != nil {
		return snap, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snap, nil
}

// persist encrypts snap and atomically replaces the data file.
func (s *Store) persist(snap store.Snapshot) error {
	plain, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	buf.Write(s.salt)
	buf.Write(nonce)
	buf.Write(s.aead.Seal(nil, nonce, plain, magic))

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".chronoly-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

// mutate applies fn to the in-memory dataset and writes the result. If the write
// fails the in-memory state is rolled back.
func (s *Store) mutate(op string, fn func(*memory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.mem.Snapshot()
	if err := fn(s.mem); err != nil {
		return err
	}
	if err := s.persist(s.mem.Snapshot()); err != nil {
		s.mem = memory.NewFromSnapshot(before)
		return &core.StoreError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) current() *memory.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem
}

func (s *Store) ListProjects(ctx context.Context) ([]core.Project, error) {
	return s.current().ListProjects(ctx)
}

func (s *Store) GetProject(ctx context.Context, id string) (core.Project, error) {
	return s.current().GetProject(ctx, id)
}

func (s *Store) InsertProject(ctx context.Context, p core.Project) error {
	return s.mutate("insert project", func(m *memory.Store) error {
		return m.InsertProject(ctx, p)
	})
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.mutate("delete project", func(m *memory.Store) error {
		return m.DeleteProject(ctx, id)
	})
}

func (s *Store) ListTimeEntries(ctx context.Context) ([]core.TimeEntry, error) {
	return s.current().ListTimeEntries(ctx)
}

func (s *Store) InsertTimeEntry(ctx context.Context, e core.TimeEntry) error {
	return s.mutate("insert time entry", func(m *memory.Store) error {
		return m.InsertTimeEntry(ctx, e)
	})
}

func (s *Store) DeleteTimeEntry(ctx context.Context, id string) error {
	return s.mutate("delete time entry", func(m *memory.Store) error {
		return m.DeleteTimeEntry(ctx, id)
	})
}

func (s *Store) DeleteTimeEntriesByProject(ctx context.Context, projectID string) (int, error) {
	var removed int
	err := s.mutate("delete time entries by project", func(m *memory.Store) error {
		var err error
		removed, err = m.DeleteTimeEntriesByProject(ctx, projectID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.path); err != nil {
		return &core.StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
