// Package testutil provides shared test helpers for setting up knowledge
// roots, index stores, and search databases.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/arpa73/AIKnowSys-sub002/internal/index"
	"github.com/arpa73/AIKnowSys-sub002/internal/search"
	"github.com/arpa73/AIKnowSys-sub002/internal/storage"
)

// Logger returns a quiet logger for tests.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestRoot creates a temporary knowledge root with a storage.Provider.
func TestRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// TestIndexStore creates an index store backed by a file inside dir.
func TestIndexStore(t *testing.T, dir string) *index.Store {
	t.Helper()
	return index.NewStore(filepath.Join(dir, ".index.json"), Logger())
}

// TestSearchDB creates a temporary search database that is cleaned up
// automatically.
func TestSearchDB(t *testing.T) *search.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "aiks-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := search.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
