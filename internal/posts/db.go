package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/checksum"
	"github.com/starford/furrow/internal/models"
)

// Docs is the subset of the document store the database backend needs.
type Docs interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, v any) error
	Remove(ctx context.Context, path string) error
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)
}

// DBRepository keeps posts as CMS documents keyed by slug under root, so
// they are published alongside editor-created posts. The revision token is
// the SHA-256 of the stored JSON.
type DBRepository struct {
	docs Docs
	root string
	now  func() time.Time
}

// NewDBRepository creates a repository storing documents under root
// (for example "cms/blog").
func NewDBRepository(docs Docs, root string) *DBRepository {
	return &DBRepository{docs: docs, root: root, now: time.Now}
}

func (r *DBRepository) key(slug string) string { return r.root + "/" + slug }

func (r *DBRepository) List(ctx context.Context) ([]models.Post, error) {
	children, err := r.docs.Children(ctx, r.root)
	if err != nil {
		return nil, fmt.Errorf("posts: list: %w", err)
	}
	out := make([]models.Post, 0, len(children))
	for key, raw := range children {
		var doc models.CMSPost
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		slug := doc.Slug
		if slug == "" {
			slug = key
		}
		out = append(out, *toPost(slug, doc, checksum.Sum(raw)))
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *DBRepository) Get(ctx context.Context, slug string) (*models.Post, error) {
	doc, raw, err := r.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	return toPost(slug, doc, checksum.Sum(raw)), nil
}

func (r *DBRepository) Create(ctx context.Context, slug string, fm models.Frontmatter, content string) (*models.Post, error) {
	if _, _, err := r.load(ctx, slug); err == nil {
		return nil, fmt.Errorf("posts: create %s: %w", slug, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	// Editor-created documents live under generated keys but publish
	// under their slug field.
	children, err := r.docs.Children(ctx, r.root)
	if err != nil {
		return nil, fmt.Errorf("posts: create %s: %w", slug, err)
	}
	for _, raw := range children {
		var doc models.CMSPost
		if json.Unmarshal(raw, &doc) == nil && doc.Slug == slug {
			return nil, fmt.Errorf("posts: create %s: %w", slug, apperr.ErrAlreadyExists)
		}
	}
	stamp := r.now().UTC().Format(time.RFC3339Nano)
	return r.store(ctx, slug, fm, content, stamp, stamp)
}

func (r *DBRepository) Update(ctx context.Context, slug string, fm models.Frontmatter, content, sha string) (*models.Post, error) {
	doc, raw, err := r.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(sha, raw) {
		return nil, fmt.Errorf("posts: update %s: %w", slug, apperr.ErrConflict)
	}
	return r.store(ctx, slug, fm, content, doc.CreatedAt, r.now().UTC().Format(time.RFC3339Nano))
}

func (r *DBRepository) Delete(ctx context.Context, slug, sha string) error {
	_, raw, err := r.load(ctx, slug)
	if err != nil {
		return err
	}
	if !checksum.Matches(sha, raw) {
		return fmt.Errorf("posts: delete %s: %w", slug, apperr.ErrConflict)
	}
	if err := r.docs.Remove(ctx, r.key(slug)); err != nil {
		return fmt.Errorf("posts: delete %s: %w", slug, err)
	}
	return nil
}

func (r *DBRepository) load(ctx context.Context, slug string) (models.CMSPost, []byte, error) {
	raw, err := r.docs.Get(ctx, r.key(slug))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.CMSPost{}, nil, fmt.Errorf("posts: %s: %w", slug, apperr.ErrNotFound)
		}
		return models.CMSPost{}, nil, err
	}
	var doc models.CMSPost
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.CMSPost{}, nil, fmt.Errorf("posts: decode %s: %w", slug, err)
	}
	return doc, raw, nil
}

func (r *DBRepository) store(ctx context.Context, slug string, fm models.Frontmatter, content, created, updated string) (*models.Post, error) {
	doc := models.CMSPost{
		Title:       fm.Title,
		Description: fm.Description,
		Body:        content,
		Date:        fm.Date,
		Image:       fm.Image,
		Authors:     fm.Authors,
		Categories:  fm.Categories,
		Tags:        fm.Tags,
		Draft:       fm.Draft,
		Slug:        slug,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if err := r.docs.Set(ctx, r.key(slug), doc); err != nil {
		return nil, fmt.Errorf("posts: store %s: %w", slug, err)
	}
	raw, err := r.docs.Get(ctx, r.key(slug))
	if err != nil {
		return nil, fmt.Errorf("posts: reload %s: %w", slug, err)
	}
	return models.NewPost(slug, fm, content, checksum.Sum(raw)), nil
}

func toPost(slug string, doc models.CMSPost, sha string) *models.Post {
	return models.NewPost(slug, models.Frontmatter{
		Title:       doc.Title,
		Description: doc.Description,
		Date:        doc.Date,
		Image:       doc.Image,
		Authors:     doc.Authors,
		Categories:  doc.Categories,
		Tags:        doc.Tags,
		Draft:       doc.Draft,
	}, doc.Body, sha)
}
