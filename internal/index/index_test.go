package index

import (
	"context"
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "furrow-index-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(key, id, title string) Row {
	return Row{Key: key, ID: id, Collection: "blog", Slug: id, Title: title, Checksum: key + "-1", Tags: []string{}, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatalf("entries table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	r := row("blog/hello.md", "blog/hello", "Hello World")
	r.Checksum = "abc123"
	r.Tags = []string{"go", "test"}
	if err := db.Upsert(r, "This is a hello world post."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	cs, err := db.GetChecksum("blog/hello.md")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
	if n, _ := db.Count(); n != 1 {
		t.Errorf("count = %d", n)
	}
}

func TestDeleteReturnsID(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(row("blog/del.md", "blog/del", "Del"), "body")

	id, err := db.Delete("blog/del.md")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if id != "blog/del" {
		t.Errorf("id = %q", id)
	}
	if cs, _ := db.GetChecksum("blog/del.md"); cs != "" {
		t.Errorf("deleted entry still has checksum %q", cs)
	}
	id, err = db.Delete("blog/del.md")
	if err != nil || id != "" {
		t.Errorf("second delete = %q, %v", id, err)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	r := row("up.md", "blog/up", "Old")
	_ = db.Upsert(r, "old body")
	r.Title, r.Checksum = "New", "2"
	_ = db.Upsert(r, "new body")

	if cs, _ := db.GetChecksum("up.md"); cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if n, _ := db.Count(); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(row("s.md", "blog/s", "Search Me"), "uniqueword appears here")

	results, err := db.Search(context.Background(), "uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "blog/s" {
		t.Errorf("search results = %+v, want 1 hit for blog/s", results)
	}
}

func TestSearch_DedupesSharedID(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(row("blog/same.md", "blog/same", "Shared"), "harvestmoon")
	_ = db.Upsert(row("cms:blog/same", "blog/same", "Shared"), "harvestmoon")

	results, err := db.Search(context.Background(), "harvestmoon", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results = %+v, want one", results)
	}
}
