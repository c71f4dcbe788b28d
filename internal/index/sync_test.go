package index

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/furrow/internal/content"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/storage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeDocs map[string][]models.Entry

func (f fakeDocs) Entries(_ context.Context, collection string) ([]models.Entry, error) {
	return f[collection], nil
}

// syncEnv sets up a content dir, storage, and DB.
func syncEnv(t *testing.T) (string, Sources, *DB) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	src := Sources{
		Files:       store,
		Static:      content.NewStaticSource(store, nil),
		Collections: []string{"blog", "news"},
	}
	return dir, src, testDB(t)
}

func writeFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSyncFiles(t *testing.T) {
	dir, src, db := syncEnv(t)
	writeFile(t, dir, "blog/one.md", "---\ntitle: One\n---\nfirst body")
	writeFile(t, dir, "blog/draft.md", "---\ntitle: Draft\ndraft: true\n---\nhidden")
	writeFile(t, dir, "blog/_partial.md", "partial")
	writeFile(t, dir, "pages/about.md", "---\ntitle: About\n---\nnot a collection")

	var events []string
	cb := func(kind, id string) { events = append(events, kind+":"+id) }
	if err := SyncFiles(db, src, quietLogger, cb); err != nil {
		t.Fatalf("SyncFiles: %v", err)
	}
	if n, _ := db.Count(); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if len(events) != 1 || events[0] != "created:blog/one" {
		t.Errorf("events = %v", events)
	}

	// Unchanged files produce no events.
	events = nil
	_ = SyncFiles(db, src, quietLogger, cb)
	if len(events) != 0 {
		t.Errorf("events on resync = %v", events)
	}

	writeFile(t, dir, "blog/one.md", "---\ntitle: One\ndraft: true\n---\nnow a draft")
	_ = SyncFiles(db, src, quietLogger, cb)
	if len(events) != 1 || events[0] != "deleted:blog/one" {
		t.Errorf("events after drafting = %v", events)
	}
}

func TestSyncRemovesStaleFiles(t *testing.T) {
	dir, src, db := syncEnv(t)
	writeFile(t, dir, "news/n.md", "---\ntitle: News\n---\nbody")
	_ = SyncFiles(db, src, quietLogger, nil)
	_ = os.Remove(filepath.Join(dir, "news", "n.md"))
	_ = SyncFiles(db, src, quietLogger, nil)
	if cs, _ := db.GetChecksum("news/n.md"); cs != "" {
		t.Error("stale file still indexed")
	}
}

func TestSyncDocs(t *testing.T) {
	_, src, db := syncEnv(t)
	docs := fakeDocs{"blog": {
		{ID: "blog/live", Collection: "blog", Slug: "live", Title: "Live", Body: "greenhouse"},
		{ID: "blog/hidden", Collection: "blog", Slug: "hidden", Title: "Hidden", Draft: true},
	}}
	src.Docs = docs

	var events []string
	cb := func(kind, id string) { events = append(events, kind+":"+id) }
	if err := SyncDocs(context.Background(), db, src, quietLogger, cb); err != nil {
		t.Fatalf("SyncDocs: %v", err)
	}
	if len(events) != 1 || events[0] != "created:blog/live" {
		t.Errorf("events = %v", events)
	}

	docs["blog"][0].Title = "Live 2"
	events = nil
	_ = SyncDocs(context.Background(), db, src, quietLogger, cb)
	if len(events) != 1 || events[0] != "updated:blog/live" {
		t.Errorf("events after edit = %v", events)
	}

	docs["blog"] = nil
	events = nil
	_ = SyncDocs(context.Background(), db, src, quietLogger, cb)
	if len(events) != 1 || events[0] != "deleted:blog/live" {
		t.Errorf("events after removal = %v", events)
	}
}

func TestSyncKeepsOtherOrigin(t *testing.T) {
	dir, src, db := syncEnv(t)
	writeFile(t, dir, "blog/f.md", "---\ntitle: File\n---\nbody")
	src.Docs = fakeDocs{"blog": {{ID: "blog/d", Collection: "blog", Slug: "d", Title: "Doc"}}}

	if err := Sync(context.Background(), db, src, quietLogger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_ = SyncFiles(db, src, quietLogger, nil)
	if n, _ := db.Count(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
