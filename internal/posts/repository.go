// Package posts manages blog posts as Markdown documents with a revision
// token per post. Posts live on disk, in the document store or in a GitHub
// repository depending on the configured backend.
package posts

import (
	"context"
	"fmt"
	"slices"

	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/parser"
)

// Repository persists posts. Implementations return errors wrapping
// apperr.ErrNotFound for missing posts, apperr.ErrAlreadyExists when
// creating over an existing slug and apperr.ErrConflict when sha does not
// name the current revision.
type Repository interface {
	List(ctx context.Context) ([]models.Post, error)
	Get(ctx context.Context, slug string) (*models.Post, error)
	Create(ctx context.Context, slug string, fm models.Frontmatter, content string) (*models.Post, error)
	Update(ctx context.Context, slug string, fm models.Frontmatter, content, sha string) (*models.Post, error)
	Delete(ctx context.Context, slug, sha string) error
}

// Backend names.
const (
	BackendFS       = "fs"
	BackendDatabase = "database"
	BackendGitHub   = "github"
)

// decode turns a Markdown document into a post.
func decode(slug string, data []byte, sha string) (*models.Post, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("posts: parse %s: %w", slug, err)
	}
	return models.NewPost(slug, res.Frontmatter(), res.Body, sha), nil
}

// sortNewestFirst orders posts by frontmatter date, newest first.
func sortNewestFirst(list []models.Post) {
	slices.SortStableFunc(list, func(a, b models.Post) int {
		da, _ := parser.ParseDate(a.Date)
		db, _ := parser.ParseDate(b.Date)
		return db.Compare(da)
	})
}

func commitAdd(title string) string    { return fmt.Sprintf("feat: Add new blog post %q", title) }
func commitUpdate(title string) string { return fmt.Sprintf("feat: Update blog post %q", title) }
func commitDelete(slug string) string  { return fmt.Sprintf("feat: Delete blog post %q", slug) }
