package posts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/github"
	"github.com/starford/furrow/internal/models"
)

type commit struct {
	path, message, sha string
}

type fakeCommits struct {
	files   map[string]*github.File
	commits []commit
	seq     int
}

func newFakeCommits() *fakeCommits { return &fakeCommits{files: map[string]*github.File{}} }

func (f *fakeCommits) PostPath(slug string) string { return "src/content/blog/" + slug + ".md" }

func (f *fakeCommits) ListPosts(context.Context) ([]github.File, error) {
	var out []github.File
	for _, file := range f.files {
		out = append(out, github.File{Path: file.Path, Name: file.Name, SHA: file.SHA})
	}
	return out, nil
}

func (f *fakeCommits) GetFile(_ context.Context, p string) (*github.File, error) {
	file, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("fake: %w", apperr.ErrNotFound)
	}
	return file, nil
}

func (f *fakeCommits) put(p, message string, content []byte) string {
	f.seq++
	sha := fmt.Sprintf("sha%d", f.seq)
	f.files[p] = &github.File{Path: p, Name: p[len("src/content/blog/"):], SHA: sha, Content: content}
	f.commits = append(f.commits, commit{p, message, sha})
	return sha
}

func (f *fakeCommits) CreateFile(_ context.Context, p, message string, content []byte) (string, error) {
	return f.put(p, message, content), nil
}

func (f *fakeCommits) UpdateFile(_ context.Context, p, message string, content []byte, sha string) (string, error) {
	if f.files[p] == nil || f.files[p].SHA != sha {
		return "", apperr.Conflict("sha mismatch")
	}
	return f.put(p, message, content), nil
}

func (f *fakeCommits) DeleteFile(_ context.Context, p, message, sha string) error {
	delete(f.files, p)
	f.commits = append(f.commits, commit{p, message, sha})
	return nil
}

func TestGitHubRepository(t *testing.T) {
	gh := newFakeCommits()
	s := NewService(NewGitHubRepository(gh), nil)
	ctx := context.Background()

	p, err := s.Create(ctx, "harvest", &models.Frontmatter{Title: "Harvest", Date: "2024-09-01"}, "Body\n")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gh.commits[0].message != `feat: Add new blog post "Harvest"` {
		t.Errorf("message = %q", gh.commits[0].message)
	}
	if _, err := s.Create(ctx, "harvest", &models.Frontmatter{Title: "Again"}, "x"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}

	got, err := s.Get(ctx, "harvest")
	if err != nil || got.Title != "Harvest" || got.SHA != p.SHA || got.Content != "Body\n" {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	up, err := s.Update(ctx, "harvest", &models.Frontmatter{Title: "Harvest 2"}, "B2\n", p.SHA)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gh.commits[1].message != `feat: Update blog post "Harvest 2"` {
		t.Errorf("message = %q", gh.commits[1].message)
	}
	if _, err := s.Update(ctx, "harvest", &models.Frontmatter{Title: "X"}, "B3", p.SHA); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale err = %v", err)
	}

	list, err := s.List(ctx)
	if err != nil || len(list) != 1 || list[0].Slug != "harvest" {
		t.Errorf("List = %+v, %v", list, err)
	}

	if err := s.Delete(ctx, "harvest", up.SHA); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if last := gh.commits[len(gh.commits)-1]; last.message != `feat: Delete blog post "harvest"` {
		t.Errorf("message = %q", last.message)
	}
	if _, err := s.Get(ctx, "harvest"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
}
