// Package file keeps every collection as a JSON document in a data
// directory. Multi-collection commits go through a small write-ahead
// journal so a crash mid-commit is finished on the next open.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"partsledger/backend/internal/store"
)

const (
	recordExt  = ".json"
	pendingExt = ".pending"
	counterExt = ".seq"
	journal    = "commit.journal"
)

var _ store.Backend = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{dir: dir}
	if err := s.recover(); err != nil {
		return nil, fmt.Errorf("recover journal: %w", err)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Read(_ context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	payload, err := os.ReadFile(s.recordPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	return payload, err
}

func (s *Store) Write(_ context.Context, name string, payload []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return writeFileAtomic(s.dir, s.recordPath(name), payload)
}

func (s *Store) WriteAll(_ context.Context, payloads map[string][]byte) error {
	names := make([]string, 0, len(payloads))
	for name := range payloads {
		if err := validName(name); err != nil {
			return err
		}
		names = append(names, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	for _, name := range names {
		if err := writeFileAtomic(s.dir, s.pendingPath(name), payloads[name]); err != nil {
			s.discardPending(names)
			return err
		}
	}

	entry, err := json.Marshal(names)
	if err != nil {
		s.discardPending(names)
		return err
	}
	// Once the journal is on disk the commit is decided; recover finishes it.
	if err := writeFileAtomic(s.dir, s.journalPath(), entry); err != nil {
		s.discardPending(names)
		return err
	}

	if err := s.applyPending(names); err != nil {
		return err
	}
	return os.Remove(s.journalPath())
}

func (s *Store) Increment(_ context.Context, name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}

	path := filepath.Join(s.dir, name+counterExt)
	current := int64(0)
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, err
	default:
		trimmed := strings.TrimSpace(string(raw))
		if trimmed != "" {
			current, err = strconv.ParseInt(trimmed, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("counter %s is corrupt: %w", name, err)
			}
		}
	}

	next := current + 1
	if err := writeFileAtomic(s.dir, path, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) recover() error {
	raw, err := os.ReadFile(s.journalPath())
	if err == nil {
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return err
		}
		if err := s.applyPending(names); err != nil {
			return err
		}
		if err := os.Remove(s.journalPath()); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// Pending files without a journal belong to a commit that never decided.
	leftovers, err := filepath.Glob(filepath.Join(s.dir, "*"+recordExt+pendingExt))
	if err != nil {
		return err
	}
	for _, path := range leftovers {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *Store) applyPending(names []string) error {
	for _, name := range names {
		err := os.Rename(s.pendingPath(name), s.recordPath(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *Store) discardPending(names []string) {
	for _, name := range names {
		_ = os.Remove(s.pendingPath(name))
	}
}

func (s *Store) recordPath(name string) string {
	return filepath.Join(s.dir, name+recordExt)
}

func (s *Store) pendingPath(name string) string {
	return s.recordPath(name) + pendingExt
}

func (s *Store) journalPath() string {
	return filepath.Join(s.dir, journal)
}

func writeFileAtomic(dir string, path string, payload []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return fmt.Errorf("invalid record name %q", name)
	}
	return nil
}
