//go:build sqlite_fts5

package index

import (
	"context"
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries_fts`).Scan(&count); err != nil {
		t.Fatalf("entries_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	r := row("blog/fts.md", "blog/fts", "FTS Entry")
	r.Tags = []string{"search"}
	if err := db.Upsert(r, "Furrow provides powerful full-text search capabilities."); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := db.Search(context.Background(), "powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "blog/fts" {
		t.Errorf("id = %q", results[0].ID)
	}
	if !strings.Contains(results[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFTS5_DeleteRemovesFromSearch(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(row("gone.md", "blog/gone", "Gone"), "ephemeral content")
	if _, err := db.Delete("gone.md"); err != nil {
		t.Fatal(err)
	}
	results, err := db.Search(context.Background(), "ephemeral", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}
