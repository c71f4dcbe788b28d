package posts

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/models"
)

// Caller-facing validation messages.
const (
	MsgMissingFields = "Missing required fields"
	MsgSlugFormat    = "Slug must contain only lowercase letters, numbers, and hyphens"
	MsgTitleRequired = "Title is required"
	MsgSHARequired   = "SHA is required for deletion"
	MsgNotFound      = "Post not found"
	MsgExists        = "A post with this slug already exists"
	MsgStale         = "Post was modified since it was loaded"
)

var slugRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Event types emitted after successful writes.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event reports a committed change to a post.
type Event struct {
	Type string
	Slug string
}

// Service validates requests and delegates to a Repository. Writes to
// the same slug run one at a time so a revision check and the write it
// guards are not interleaved with another writer in this process.
type Service struct {
	repo   Repository
	notify func(Event)
	now    func() time.Time
	locks  slugLocks
}

// NewService creates a Service. notify may be nil.
func NewService(repo Repository, notify func(Event)) *Service {
	if notify == nil {
		notify = func(Event) {}
	}
	return &Service{repo: repo, notify: notify, now: time.Now}
}

// List returns every post, newest first.
func (s *Service) List(ctx context.Context) ([]models.Post, error) {
	return s.repo.List(ctx)
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, slug string) (*models.Post, error) {
	if slug == "" {
		return nil, apperr.Invalid("Slug parameter required")
	}
	p, err := s.repo.Get(ctx, slug)
	return p, s.mapErr(err)
}

// Create validates and stores a new post.
func (s *Service) Create(ctx context.Context, slug string, fm *models.Frontmatter, content string) (*models.Post, error) {
	if slug == "" || fm == nil || content == "" {
		return nil, apperr.Invalid(MsgMissingFields)
	}
	if err := validation.Validate(slug, validation.Match(slugRe).Error(MsgSlugFormat)); err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	norm, err := s.normalize(*fm)
	if err != nil {
		return nil, err
	}
	defer s.locks.lock(slug)()
	p, err := s.repo.Create(ctx, slug, norm, content)
	if err != nil {
		return nil, s.mapErr(err)
	}
	slog.Info("post created", "slug", slug)
	s.notify(Event{Type: EventCreated, Slug: slug})
	return p, nil
}

// Update replaces a post whose current revision is sha.
func (s *Service) Update(ctx context.Context, slug string, fm *models.Frontmatter, content, sha string) (*models.Post, error) {
	if slug == "" {
		return nil, apperr.Invalid("Slug parameter required")
	}
	if fm == nil || content == "" || sha == "" {
		return nil, apperr.Invalid(MsgMissingFields)
	}
	norm, err := s.normalize(*fm)
	if err != nil {
		return nil, err
	}
	defer s.locks.lock(slug)()
	p, err := s.repo.Update(ctx, slug, norm, content, sha)
	if err != nil {
		return nil, s.mapErr(err)
	}
	slog.Info("post updated", "slug", slug)
	s.notify(Event{Type: EventUpdated, Slug: slug})
	return p, nil
}

// Delete removes a post whose current revision is sha.
func (s *Service) Delete(ctx context.Context, slug, sha string) error {
	if slug == "" {
		return apperr.Invalid("Slug parameter required")
	}
	if sha == "" {
		return apperr.Invalid(MsgSHARequired)
	}
	defer s.locks.lock(slug)()
	if err := s.repo.Delete(ctx, slug, sha); err != nil {
		return s.mapErr(err)
	}
	slog.Info("post deleted", "slug", slug)
	s.notify(Event{Type: EventDeleted, Slug: slug})
	return nil
}

// normalize fills defaults and enforces a title.
func (s *Service) normalize(fm models.Frontmatter) (models.Frontmatter, error) {
	fm.Title = strings.TrimSpace(fm.Title)
	err := validation.ValidateStruct(&fm,
		validation.Field(&fm.Title, validation.Required.Error(MsgTitleRequired)),
	)
	if err != nil {
		return fm, apperr.Invalid(MsgTitleRequired)
	}
	if fm.Date == "" {
		fm.Date = s.now().UTC().Format(time.RFC3339Nano)
	}
	if fm.Authors == nil {
		fm.Authors = []string{}
	}
	if fm.Categories == nil {
		fm.Categories = []string{}
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	return fm, nil
}

// mapErr attaches caller-facing messages to repository sentinels.
func (s *Service) mapErr(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae) && ae.Message != "" && !errors.Is(err, apperr.ErrConflict):
		return err
	case errors.Is(err, apperr.ErrNotFound):
		return &apperr.Error{Kind: apperr.ErrNotFound, Message: MsgNotFound, Err: err}
	case errors.Is(err, apperr.ErrAlreadyExists):
		return &apperr.Error{Kind: apperr.ErrAlreadyExists, Message: MsgExists, Err: err}
	case errors.Is(err, apperr.ErrConflict):
		return &apperr.Error{Kind: apperr.ErrConflict, Message: MsgStale, Err: err}
	default:
		return err
	}
}

// slugLocks hands out one mutex per slug. Entries are dropped once no
// writer holds or waits on them.
type slugLocks struct {
	mu    sync.Mutex
	slugs map[string]*slugLock
}

type slugLock struct {
	sync.Mutex
	refs int
}

// lock blocks until slug is free and returns the matching unlock.
func (l *slugLocks) lock(slug string) (unlock func()) {
	l.mu.Lock()
	if l.slugs == nil {
		l.slugs = make(map[string]*slugLock)
	}
	k := l.slugs[slug]
	if k == nil {
		k = &slugLock{}
		l.slugs[slug] = k
	}
	k.refs++
	l.mu.Unlock()

	k.Lock()
	return func() {
		k.Unlock()
		l.mu.Lock()
		k.refs--
		if k.refs == 0 {
			delete(l.slugs, slug)
		}
		l.mu.Unlock()
	}
}
