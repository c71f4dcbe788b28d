package posts

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/docstore"
	"github.com/starford/furrow/internal/models"
)

func testDocs(t *testing.T) *docstore.Store {
	t.Helper()
	f, err := os.CreateTemp("", "furrow-posts-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	s, err := docstore.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDBRepository(t *testing.T) {
	docs := testDocs(t)
	repo := NewDBRepository(docs, "cms/blog")
	repo.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	front := models.Frontmatter{Title: "DB", Date: "2024-05-01", Authors: []string{"a"}, Categories: []string{"c"}, Tags: []string{}}

	p, err := repo.Create(ctx, "db-post", front, "Body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Create(ctx, "db-post", front, "Body"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}

	var stored models.CMSPost
	if err := docs.GetInto(ctx, "cms/blog/db-post", &stored); err != nil {
		t.Fatal(err)
	}
	if stored.Slug != "db-post" || stored.CreatedAt == "" || stored.Body != "Body" {
		t.Errorf("stored = %+v", stored)
	}

	got, err := repo.Get(ctx, "db-post")
	if err != nil || got.SHA != p.SHA {
		t.Fatalf("Get = %+v, %v (want sha %s)", got, err, p.SHA)
	}

	front.Title = "DB 2"
	repo.now = func() time.Time { return time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC) }
	up, err := repo.Update(ctx, "db-post", front, "Body 2", p.SHA)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := repo.Update(ctx, "db-post", front, "Body 3", p.SHA); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale err = %v", err)
	}
	_ = docs.GetInto(ctx, "cms/blog/db-post", &stored)
	if stored.CreatedAt != "2024-05-01T09:00:00Z" || stored.UpdatedAt != "2024-05-02T09:00:00Z" {
		t.Errorf("stamps = %q / %q", stored.CreatedAt, stored.UpdatedAt)
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 || list[0].SHA != up.SHA {
		t.Errorf("List = %+v, %v", list, err)
	}

	if err := repo.Delete(ctx, "db-post", up.SHA); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "db-post"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
}

func TestDBRepository_EditorSlugTaken(t *testing.T) {
	docs := testDocs(t)
	repo := NewDBRepository(docs, "cms/blog")
	ctx := context.Background()

	if err := docs.Set(ctx, "cms/blog/-Nx01", models.CMSPost{Title: "Editor", Slug: "shared-slug"}); err != nil {
		t.Fatal(err)
	}
	front := models.Frontmatter{Title: "Backend", Date: "2024-05-01"}
	if _, err := repo.Create(ctx, "shared-slug", front, "Body"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want already exists", err)
	}
	if _, err := repo.Create(ctx, "fresh-slug", front, "Body"); err != nil {
		t.Errorf("Create: %v", err)
	}
}
