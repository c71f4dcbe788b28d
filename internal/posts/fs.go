package posts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/checksum"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/parser"
	"github.com/starford/furrow/internal/storage"
)

// FSRepository keeps posts as <dir>/<slug>.md files. The revision token is
// the SHA-256 of the file.
type FSRepository struct {
	store storage.Provider
	dir   string
}

// NewFSRepository creates a repository over dir inside store.
func NewFSRepository(store storage.Provider, dir string) *FSRepository {
	return &FSRepository{store: store, dir: dir}
}

func (r *FSRepository) path(slug string) string {
	return path.Join(r.dir, slug+".md")
}

func (r *FSRepository) List(_ context.Context) ([]models.Post, error) {
	files, err := r.store.List(r.dir)
	if err != nil {
		return nil, fmt.Errorf("posts: list: %w", err)
	}
	out := make([]models.Post, 0, len(files))
	for _, f := range files {
		name := path.Base(f.Path)
		if path.Dir(f.Path) != r.dir || !strings.HasSuffix(name, ".md") {
			continue
		}
		data, err := r.store.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("posts: read %s: %w", f.Path, err)
		}
		p, err := decode(strings.TrimSuffix(name, ".md"), data, checksum.Sum(data))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *FSRepository) Get(_ context.Context, slug string) (*models.Post, error) {
	data, err := r.read(slug)
	if err != nil {
		return nil, err
	}
	return decode(slug, data, checksum.Sum(data))
}

func (r *FSRepository) Create(_ context.Context, slug string, fm models.Frontmatter, content string) (*models.Post, error) {
	ok, err := r.store.Exists(r.path(slug))
	if err != nil {
		return nil, fmt.Errorf("posts: stat %s: %w", slug, err)
	}
	if ok {
		return nil, fmt.Errorf("posts: create %s: %w", slug, apperr.ErrAlreadyExists)
	}
	return r.write(slug, fm, content)
}

func (r *FSRepository) Update(_ context.Context, slug string, fm models.Frontmatter, content, sha string) (*models.Post, error) {
	existing, err := r.read(slug)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(sha, existing) {
		return nil, fmt.Errorf("posts: update %s: %w", slug, apperr.ErrConflict)
	}
	return r.write(slug, fm, content)
}

func (r *FSRepository) Delete(_ context.Context, slug, sha string) error {
	existing, err := r.read(slug)
	if err != nil {
		return err
	}
	if !checksum.Matches(sha, existing) {
		return fmt.Errorf("posts: delete %s: %w", slug, apperr.ErrConflict)
	}
	if err := r.store.Delete(r.path(slug)); err != nil {
		return fmt.Errorf("posts: delete %s: %w", slug, err)
	}
	return nil
}

func (r *FSRepository) read(slug string) ([]byte, error) {
	data, err := r.store.Read(r.path(slug))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("posts: %s: %w", slug, apperr.ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

func (r *FSRepository) write(slug string, fm models.Frontmatter, content string) (*models.Post, error) {
	data, err := parser.Render(fm, content)
	if err != nil {
		return nil, err
	}
	if err := r.store.Write(r.path(slug), data); err != nil {
		return nil, fmt.Errorf("posts: write %s: %w", slug, err)
	}
	return models.NewPost(slug, fm, content, checksum.Sum(data)), nil
}
