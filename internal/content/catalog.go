// Package content assembles content entries from static files and the
// document store and provides the listing, ranking and search operations
// the site and admin API are built on.
package content

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/starford/furrow/internal/apperr"
	"github.com/starford/furrow/internal/models"
	"github.com/starford/furrow/internal/parser"
)

// NewsCollection is ordered by priority before date.
const NewsCollection = "news"

// Catalog merges sources into published, ordered collections.
type Catalog struct {
	collections []string
	sources     []Source
}

// NewCatalog creates a Catalog over the named collections.
func NewCatalog(collections []string, sources ...Source) *Catalog {
	return &Catalog{collections: collections, sources: sources}
}

// Collections returns the configured collection names.
func (c *Catalog) Collections() []string {
	return slices.Clone(c.collections)
}

// HasCollection reports whether name is configured.
func (c *Catalog) HasCollection(name string) bool {
	return slices.Contains(c.collections, name)
}

// All returns every entry of collection, drafts included, in source order.
// Later sources win when two share an ID.
func (c *Catalog) All(ctx context.Context, collection string) ([]models.Entry, error) {
	if !c.HasCollection(collection) {
		return nil, apperr.NotFound(fmt.Sprintf("unknown collection %q", collection))
	}
	pos := map[string]int{}
	var out []models.Entry
	for _, src := range c.sources {
		entries, err := src.Entries(ctx, collection)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if i, ok := pos[e.ID]; ok {
				out[i] = e
				continue
			}
			pos[e.ID] = len(out)
			out = append(out, e)
		}
	}
	return out, nil
}

// Published returns the non-draft entries of collection, newest first
// (news: highest priority first).
func (c *Catalog) Published(ctx context.Context, collection string) ([]models.Entry, error) {
	all, err := c.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := filter(all, func(e models.Entry) bool { return !e.Draft })
	if collection == NewsCollection {
		SortByPriority(out)
	} else {
		SortByDate(out)
	}
	return out, nil
}

// Entry returns the published entry with slug.
func (c *Catalog) Entry(ctx context.Context, collection, slug string) (*models.Entry, error) {
	entries, err := c.Published(ctx, collection)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Slug == slug {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("content: entry %s/%s: %w", collection, slug, apperr.ErrNotFound)
}

// SimilarTo ranks the collection against the entry with slug.
func (c *Catalog) SimilarTo(ctx context.Context, collection, slug string, limit int) ([]models.Entry, error) {
	entries, err := c.Published(ctx, collection)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(entries, func(e models.Entry) bool { return e.Slug == slug })
	if idx < 0 {
		return nil, fmt.Errorf("content: entry %s/%s: %w", collection, slug, apperr.ErrNotFound)
	}
	out := Similar(entries[idx], entries)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search runs q over collection, or over every collection when empty.
func (c *Catalog) Search(ctx context.Context, collection string, q Query) ([]models.Entry, error) {
	names := c.collections
	if collection != "" {
		names = []string{collection}
	}
	var all []models.Entry
	for _, name := range names {
		entries, err := c.Published(ctx, name)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return Search(all, q), nil
}

// Taxonomy lists the distinct categories or tags of collection.
func (c *Catalog) Taxonomy(ctx context.Context, collection, kind string) ([]string, error) {
	entries, err := c.Published(ctx, collection)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindCategories:
		return Categories(entries), nil
	case KindTags:
		return Tags(entries), nil
	default:
		return nil, apperr.Invalid(fmt.Sprintf("unknown taxonomy %q", kind))
	}
}

// FeaturedNews returns the featured news entries topped up to limit.
func (c *Catalog) FeaturedNews(ctx context.Context, limit int) ([]models.Entry, error) {
	entries, err := c.Published(ctx, NewsCollection)
	if err != nil {
		return nil, err
	}
	return Featured(entries, limit), nil
}

// Latest returns the first limit published entries of collection.
func (c *Catalog) Latest(ctx context.Context, collection string, limit int) ([]models.Entry, error) {
	entries, err := c.Published(ctx, collection)
	if err != nil {
		return nil, err
	}
	return Latest(entries, limit), nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orDate(s string, fallback time.Time) time.Time {
	if t, err := parser.ParseDate(s); err == nil {
		return t
	}
	return fallback
}
