// Package testutil provides shared test helpers for setting up content
// directories and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/furrow/internal/docstore"
	"github.com/starford/furrow/internal/index"
	"github.com/starford/furrow/internal/storage"
)

// tempFile returns a path to an empty temp file that is removed on cleanup.
func tempFile(t *testing.T, pattern string) string {
	t.Helper()
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

// TestDB creates a temporary search index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(tempFile(t, "furrow-index-*.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDocs creates a temporary document store.
func TestDocs(t *testing.T) *docstore.Store {
	t.Helper()
	docs, err := docstore.Open(tempFile(t, "furrow-docs-*.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { docs.Close() })
	return docs
}

// TestContent creates a temporary content directory with a storage.FS.
func TestContent(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes body to rel under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
