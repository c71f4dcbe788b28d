package posts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/github"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/parser"
)

// Commits is the subset of the GitHub client the github backend needs.
type Commits interface {
	PostPath(slug string) string
	ListPosts(ctx context.Context) ([]github.File, error)
	GetFile(ctx context.Context, path string) (*github.File, error)
	CreateFile(ctx context.Context, path, message string, content []byte) (string, error)
	UpdateFile(ctx context.Context, path, message string, content []byte, sha string) (string, error)
	DeleteFile(ctx context.Context, path, message, sha string) error
}

// GitHubRepository commits every change to the repository. The revision
// token is the blob SHA GitHub reports.
type GitHubRepository struct {
	gh Commits
}

// NewGitHubRepository creates a repository over gh.
func NewGitHubRepository(gh Commits) *GitHubRepository {
	return &GitHubRepository{gh: gh}
}

func (r *GitHubRepository) List(ctx context.Context) ([]models.Post, error) {
	files, err := r.gh.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Post, 0, len(files))
	for _, f := range files {
		full, err := r.gh.GetFile(ctx, f.Path)
		if err != nil {
			return nil, err
		}
		p, err := decode(strings.TrimSuffix(path.Base(f.Name), ".md"), full.Content, full.SHA)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *GitHubRepository) Get(ctx context.Context, slug string) (*models.Post, error) {
	f, err := r.gh.GetFile(ctx, r.gh.PostPath(slug))
	if err != nil {
		return nil, err
	}
	return decode(slug, f.Content, f.SHA)
}

func (r *GitHubRepository) Create(ctx context.Context, slug string, fm models.Frontmatter, content string) (*models.Post, error) {
	if _, err := r.gh.GetFile(ctx, r.gh.PostPath(slug)); err == nil {
		return nil, fmt.Errorf("posts: create %s: %w", slug, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	data, err := parser.Render(fm, content)
	if err != nil {
		return nil, err
	}
	sha, err := r.gh.CreateFile(ctx, r.gh.PostPath(slug), commitAdd(fm.Title), data)
	if err != nil {
		return nil, err
	}
	return models.NewPost(slug, fm, content, sha), nil
}

func (r *GitHubRepository) Update(ctx context.Context, slug string, fm models.Frontmatter, content, sha string) (*models.Post, error) {
	if err := r.checkRevision(ctx, slug, sha); err != nil {
		return nil, err
	}
	data, err := parser.Render(fm, content)
	if err != nil {
		return nil, err
	}
	newSHA, err := r.gh.UpdateFile(ctx, r.gh.PostPath(slug), commitUpdate(fm.Title), data, sha)
	if err != nil {
		return nil, err
	}
	return models.NewPost(slug, fm, content, newSHA), nil
}

func (r *GitHubRepository) Delete(ctx context.Context, slug, sha string) error {
	if err := r.checkRevision(ctx, slug, sha); err != nil {
		return err
	}
	return r.gh.DeleteFile(ctx, r.gh.PostPath(slug), commitDelete(slug), sha)
}

// checkRevision fails fast when the post is gone or sha is stale; GitHub
// still rejects a commit that races with another writer.
func (r *GitHubRepository) checkRevision(ctx context.Context, slug, sha string) error {
	f, err := r.gh.GetFile(ctx, r.gh.PostPath(slug))
	if err != nil {
		return err
	}
	if f.SHA != sha {
		return fmt.Errorf("posts: %s: %w", slug, apperr.ErrConflict)
	}
	return nil
}
