package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/parser"
	"github.com/starford/furrow/internal/storage"
	"github.com/starford/furrow/internal/textconv"
)

// autoDescriptionLength bounds descriptions derived from the body.
const autoDescriptionLength = 200

// Source yields the entries of one collection, drafts included.
type Source interface {
	Entries(ctx context.Context, collection string) ([]models.Entry, error)
}

// Routes maps collection names to their public URL segment.
type Routes map[string]string

// DefaultRoutes is used when no route is configured for a collection.
var DefaultRoutes = Routes{"blog": "agritech", "news": "news"}

// URL returns the public URL of slug in collection.
func (r Routes) URL(collection, slug string) string {
	route, ok := r[collection]
	if !ok {
		route = collection
	}
	return "/" + route + "/" + slug + "/"
}

// StaticSource loads Markdown files from <root>/<collection>. Files whose
// name starts with "_" and "-index" list pages are skipped.
type StaticSource struct {
	store  storage.Provider
	routes Routes
}

// NewStaticSource creates a StaticSource over store.
func NewStaticSource(store storage.Provider, routes Routes) *StaticSource {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &StaticSource{store: store, routes: routes}
}

// Entries parses every content file of collection.
func (s *StaticSource) Entries(_ context.Context, collection string) ([]models.Entry, error) {
	files, err := s.store.List(collection)
	if err != nil {
		return nil, fmt.Errorf("content: list %s: %w", collection, err)
	}
	out := make([]models.Entry, 0, len(files))
	for _, f := range files {
		e, ok, err := s.load(collection, f.Path)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// load parses a single file. ok is false for files that are not entries.
func (s *StaticSource) load(collection, rel string) (models.Entry, bool, error) {
	name := path.Base(rel)
	stem := strings.TrimSuffix(name, path.Ext(name))
	if strings.HasPrefix(name, "_") || stem == "-index" {
		return models.Entry{}, false, nil
	}
	data, err := s.store.Read(rel)
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("content: read %s: %w", rel, err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return models.Entry{}, false, fmt.Errorf("content: parse %s: %w", rel, err)
	}
	e := res.Entry(collection, stem)
	e.URL = s.routes.URL(collection, e.Slug)
	if e.ImageAlt == "" {
		e.ImageAlt = e.Title
	}
	describe(&e)
	return e, true, nil
}

// EntryFile converts a file path relative to the content root into an entry,
// reporting ok=false for files outside any collection or skipped by name.
func (s *StaticSource) EntryFile(rel string) (models.Entry, bool, error) {
	collection, _, found := strings.Cut(rel, "/")
	if !found || !storage.IsMarkdown(rel) {
		return models.Entry{}, false, nil
	}
	return s.load(collection, rel)
}

// Tree is the read side of the document store.
type Tree interface {
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)
}

// DBSource loads CMS documents stored under cms/<collection>.
type DBSource struct {
	tree   Tree
	routes Routes
}

// NewDBSource creates a DBSource over tree.
func NewDBSource(tree Tree, routes Routes) *DBSource {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &DBSource{tree: tree, routes: routes}
}

// Entries decodes every document of collection. Undecodable documents are
// logged and skipped.
func (s *DBSource) Entries(ctx context.Context, collection string) ([]models.Entry, error) {
	docs, err := s.tree.Children(ctx, "cms/"+collection)
	if err != nil {
		return nil, fmt.Errorf("content: load cms/%s: %w", collection, err)
	}
	out := make([]models.Entry, 0, len(docs))
	for id, raw := range docs {
		var p models.CMSPost
		if err := json.Unmarshal(raw, &p); err != nil {
			slog.Warn("content: skip undecodable document", "collection", collection, "id", id, "error", err)
			continue
		}
		out = append(out, s.entry(collection, id, p))
	}
	return out, nil
}

// entry converts a document. A document without a slug publishes under
// its key.
func (s *DBSource) entry(collection, id string, p models.CMSPost) models.Entry {
	if p.Slug == "" {
		p.Slug = id
	}
	date, _ := parser.ParseDate(p.Date)
	e := models.Entry{
		ID:              collection + "/" + p.Slug,
		Collection:      collection,
		Slug:            p.Slug,
		Title:           p.Title,
		Description:     p.Description,
		Date:            date,
		Image:           p.Image,
		ImageAlt:        p.Title,
		Authors:         orEmpty(p.Authors),
		Categories:      orEmpty(p.Categories),
		Tags:            orEmpty(p.Tags),
		Draft:           p.Draft,
		Complexity:      1,
		AutoDescription: true,
		Body:            p.Body,
		URL:             s.routes.URL(collection, p.Slug),
		Priority:        p.Priority,
		Featured:        p.Featured,
		ExternalLink:    p.ExternalLink,
		Source:          p.Source,
		Views:           p.Views,
	}
	e.CreatedAt = orDate(p.CreatedAt, date)
	e.UpdatedAt = orDate(p.UpdatedAt, e.CreatedAt)
	e.PublishedAt = orDate(p.PublishedAt, date)
	describe(&e)
	return e
}

// describe fills an empty description with a plain-text excerpt of the
// body when the entry has autodescription enabled.
func describe(e *models.Entry) {
	if !e.AutoDescription || strings.TrimSpace(e.Description) != "" || strings.TrimSpace(e.Body) == "" {
		return
	}
	e.Description = textconv.SmartTruncate(e.Body, autoDescriptionLength)
}
