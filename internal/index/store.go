package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arpa73/AIKnowSys-sub002/internal/apperr"
)

// Store persists the index document as pretty-printed JSON at a fixed
// path. The file is machine-written but must stay human-inspectable for
// debugging, hence the indentation.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store for the index file at path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the index file location.
func (s *Store) Path() string { return s.path }

// Load reads the on-disk index. An absent or unparsable file yields an
// empty index, never an error: first runs start empty, and a corrupt index
// is recovered by the next rebuild.
func (s *Store) Load() *Index {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("index: load failed, starting empty", slog.String("path", s.path), slog.String("error", err.Error()))
		}
		return New()
	}
	ix := New()
	if err := json.Unmarshal(data, ix); err != nil {
		s.logger.Warn("index: corrupt index, starting empty", slog.String("path", s.path), slog.String("error", err.Error()))
		return New()
	}
	return ix
}

// Save serializes the index and replaces the file atomically
// (tmp → fsync → rename), so a concurrent reader never observes a
// half-written index.
func (s *Store) Save(ix *Index) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}
	data = append(data, '\n')
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: index: %v", apperr.ErrIO, err)
	}
	return nil
}

// Snapshot captures the current index file bytes for rollback. existed is
// false when no index file is present yet.
func (s *Store) Snapshot() (data []byte, existed bool, err error) {
	data, err = os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: index snapshot: %v", apperr.ErrIO, err)
	}
	return data, true, nil
}

// Restore puts the index file back to a previously captured snapshot,
// byte for byte. Used by the mutation rollback path.
func (s *Store) Restore(data []byte, existed bool) error {
	if !existed {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: index restore: %v", apperr.ErrIO, err)
		}
		return nil
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: index restore: %v", apperr.ErrIO, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".index-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	success = true
	return nil
}
