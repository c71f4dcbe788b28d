// Package cms is the headless editor backend: blog and news documents plus
// singleton pages kept in the document store under "cms/".
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/parser"
	"github.com/starford/furrow/internal/textconv"
)

// Root is the document store prefix for all CMS data.
const Root = "cms"

// Singleton pages.
const (
	PageAbout = "about"
	PageHome  = "home"
)

// Caller-facing messages.
const (
	MsgUnknownCollection = "Unknown collection"
	MsgUnknownPage       = "Unknown page"
	MsgPostNotFound      = "Post not found"
	MsgPageNotFound      = "Page not found"
	MsgValidation        = "Validation failed"
	MsgSlugTaken         = "A post with this slug already exists"
)

// Docs is the subset of the document store the CMS needs.
type Docs interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Push(ctx context.Context, path string, v any) (string, error)
	Remove(ctx context.Context, path string) error
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)
}

// Service manages CMS documents. Slugs are unique within a collection;
// writes that could change a slug are serialized.
type Service struct {
	docs        Docs
	collections []string
	now         func() time.Time

	mu sync.Mutex
}

// NewService creates a Service accepting posts in the given collections.
func NewService(docs Docs, collections []string) *Service {
	return &Service{docs: docs, collections: collections, now: time.Now}
}

// Collections returns the editable collections.
func (s *Service) Collections() []string { return s.collections }

func (s *Service) collectionPath(collection string) (string, error) {
	if !slices.Contains(s.collections, collection) {
		return "", apperr.NotFound(MsgUnknownCollection)
	}
	return Root + "/" + collection, nil
}

func (s *Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// List returns every post in collection, newest first. Documents that no
// longer decode are skipped.
func (s *Service) List(ctx context.Context, collection string) ([]models.CMSPost, error) {
	base, err := s.collectionPath(collection)
	if err != nil {
		return nil, err
	}
	children, err := s.docs.Children(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("cms: list %s: %w", collection, err)
	}
	out := make([]models.CMSPost, 0, len(children))
	for id, raw := range children {
		var p models.CMSPost
		if err := json.Unmarshal(raw, &p); err != nil {
			slog.Warn("cms: skipping undecodable post", "collection", collection, "id", id, "error", err)
			continue
		}
		p.ID = id
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b models.CMSPost) int {
		if c := postTime(b).Compare(postTime(a)); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func postTime(p models.CMSPost) time.Time {
	if t, err := parser.ParseDate(p.Date); err == nil {
		return t
	}
	t, _ := parser.ParseDate(p.CreatedAt)
	return t
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, collection, id string) (*models.CMSPost, error) {
	base, err := s.collectionPath(collection)
	if err != nil {
		return nil, err
	}
	raw, err := s.docs.Get(ctx, base+"/"+id)
	if err != nil {
		return nil, s.mapErr(err, MsgPostNotFound)
	}
	var p models.CMSPost
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("cms: decode %s/%s: %w", collection, id, err)
	}
	p.ID = id
	return &p, nil
}

// Create validates p, fills slug and timestamps, and stores it under a new
// time-ordered key.
func (s *Service) Create(ctx context.Context, collection string, p models.CMSPost) (*models.CMSPost, error) {
	base, err := s.collectionPath(collection)
	if err != nil {
		return nil, err
	}
	p = tidy(p)
	if p.Slug == "" {
		p.Slug = textconv.Slugify(p.Title)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkSlug(ctx, base, p.Slug, ""); err != nil {
		return nil, err
	}
	p.ID = ""
	p.CreatedAt = s.stamp()
	p.UpdatedAt = p.CreatedAt
	id, err := s.docs.Push(ctx, base, p)
	if err != nil {
		return nil, s.mapErr(err, MsgPostNotFound)
	}
	p.ID = id
	slog.Info("cms post created", "collection", collection, "id", id, "slug", p.Slug)
	return &p, nil
}

// Update merges fields into an existing post and refreshes updatedAt. The
// merged document must still validate. id and createdAt cannot be changed.
func (s *Service) Update(ctx context.Context, collection, id string, fields map[string]any) (*models.CMSPost, error) {
	base, err := s.collectionPath(collection)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperr.Invalid("No fields to update")
	}
	path := base + "/" + id
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.docs.Get(ctx, path)
	if err != nil {
		return nil, s.mapErr(err, MsgPostNotFound)
	}
	var current map[string]any
	if err := json.Unmarshal(raw, &current); err != nil {
		return nil, fmt.Errorf("cms: decode %s: %w", path, err)
	}

	delete(fields, "id")
	delete(fields, "createdAt")
	fields["updatedAt"] = s.stamp()
	for k, v := range fields {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return nil, apperr.Invalid("Invalid request body")
	}
	var p models.CMSPost
	if err := json.Unmarshal(merged, &p); err != nil {
		return nil, apperr.Invalid("Invalid request body")
	}
	if err := Validate(tidy(p)); err != nil {
		return nil, err
	}
	if err := s.checkSlug(ctx, base, tidy(p).Slug, id); err != nil {
		return nil, err
	}

	if err := s.docs.Update(ctx, path, fields); err != nil {
		return nil, s.mapErr(err, MsgPostNotFound)
	}
	p.ID = id
	slog.Info("cms post updated", "collection", collection, "id", id)
	return &p, nil
}

// checkSlug fails with ErrAlreadyExists when a document other than
// selfID in base already publishes under slug. A document without a slug
// publishes under its key.
func (s *Service) checkSlug(ctx context.Context, base, slug, selfID string) error {
	if slug == "" {
		return nil
	}
	children, err := s.docs.Children(ctx, base)
	if err != nil {
		return fmt.Errorf("cms: list %s: %w", base, err)
	}
	for id, raw := range children {
		if id == selfID {
			continue
		}
		var doc struct {
			Slug string `json:"slug"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if doc.Slug == "" {
			doc.Slug = id
		}
		if doc.Slug == slug {
			return &apperr.Error{Kind: apperr.ErrAlreadyExists, Message: MsgSlugTaken}
		}
	}
	return nil
}

// Delete removes a post.
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	base, err := s.collectionPath(collection)
	if err != nil {
		return err
	}
	path := base + "/" + id
	if _, err := s.docs.Get(ctx, path); err != nil {
		return s.mapErr(err, MsgPostNotFound)
	}
	if err := s.docs.Remove(ctx, path); err != nil {
		return fmt.Errorf("cms: delete %s: %w", path, err)
	}
	slog.Info("cms post deleted", "collection", collection, "id", id)
	return nil
}

func pagePath(name string) (string, error) {
	if name != PageAbout && name != PageHome {
		return "", apperr.NotFound(MsgUnknownPage)
	}
	return Root + "/" + name + "/index", nil
}

// Page returns a singleton page document.
func (s *Service) Page(ctx context.Context, name string) (models.Page, error) {
	path, err := pagePath(name)
	if err != nil {
		return nil, err
	}
	raw, err := s.docs.Get(ctx, path)
	if err != nil {
		return nil, s.mapErr(err, MsgPageNotFound)
	}
	var page models.Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("cms: decode %s: %w", path, err)
	}
	return page, nil
}

// PutPage replaces a singleton page document.
func (s *Service) PutPage(ctx context.Context, name string, page models.Page) error {
	path, err := pagePath(name)
	if err != nil {
		return err
	}
	if len(page) == 0 {
		return apperr.Invalid("Page content is required")
	}
	if err := s.docs.Set(ctx, path, page); err != nil {
		return s.mapErr(err, MsgPageNotFound)
	}
	slog.Info("cms page saved", "page", name)
	return nil
}

// Export renders a post as a Markdown document with YAML frontmatter, the
// shape the static content collections expect.
func Export(p models.CMSPost) ([]byte, error) {
	date := p.Date
	if t, err := parser.ParseDate(p.Date); err == nil {
		date = parser.FormatDate(t)
	}
	return parser.Render(models.Frontmatter{
		Title:       p.Title,
		Description: p.Description,
		Date:        date,
		Image:       p.Image,
		Authors:     p.Authors,
		Categories:  p.Categories,
		Tags:        p.Tags,
		Draft:       p.Draft,
	}, p.Body)
}

func (s *Service) mapErr(err error, notFound string) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return &apperr.Error{Kind: apperr.ErrNotFound, Message: notFound, Err: err}
	}
	return err
}

func tidy(p models.CMSPost) models.CMSPost {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	p.Slug = strings.TrimSpace(p.Slug)
	if strings.TrimSpace(p.Body) == "" {
		p.Body = ""
	}
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

// Validate checks the fields every published post needs. Failures are
// reported together as an Invalid error whose details list each message.
func Validate(p models.CMSPost) error {
	checks := []error{
		validation.Validate(strings.TrimSpace(p.Title), validation.Required.Error("Title is required")),
		validation.Validate(strings.TrimSpace(p.Description), validation.Required.Error("Description is required")),
		validation.Validate(p.Date, validation.Required.Error("Date is required")),
		validation.Validate(strings.TrimSpace(p.Body), validation.Required.Error("Content body is required")),
		validation.Validate(p.Authors, validation.Required.Error("At least one author is required")),
		validation.Validate(p.Categories, validation.Required.Error("At least one category is required")),
	}
	if p.Slug != "" && !textconv.IsSlug(p.Slug) {
		checks = append(checks, validation.NewError("validation_slug", "Slug must contain only lowercase letters, numbers, and hyphens"))
	}
	var msgs []string
	for _, err := range checks {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return &apperr.Error{Kind: apperr.ErrInvalid, Message: MsgValidation, Details: strings.Join(msgs, "; ")}
}
