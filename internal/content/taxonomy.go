package content

import (
	"slices"
	"strings"

	"github.com/starford/furrow/internal/models"
)

// Taxonomy kinds.
const (
	KindCategories = "categories"
	KindTags       = "tags"
)

// Categories returns the distinct categories used by entries, sorted.
func Categories(entries []models.Entry) []string {
	return distinct(entries, func(e models.Entry) []string { return e.Categories })
}

// Tags returns the distinct tags used by entries, sorted.
func Tags(entries []models.Entry) []string {
	return distinct(entries, func(e models.Entry) []string { return e.Tags })
}

func distinct(entries []models.Entry, field func(models.Entry) []string) []string {
	set := map[string]struct{}{}
	for _, e := range entries {
		for _, v := range field(e) {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// ByCategory returns the entries listing category.
func ByCategory(entries []models.Entry, category string) []models.Entry {
	return filter(entries, func(e models.Entry) bool { return e.HasCategory(category) })
}

// ByTag returns the entries listing tag.
func ByTag(entries []models.Entry, tag string) []models.Entry {
	return filter(entries, func(e models.Entry) bool { return e.HasTag(tag) })
}

// Query narrows a search. Empty fields do not filter.
type Query struct {
	Text     string
	Category string
	Tag      string
}

// Search applies the category and tag filters, then keeps entries whose
// title, description, body or any tag contains Text, ignoring case.
func Search(entries []models.Entry, q Query) []models.Entry {
	out := entries
	if q.Category != "" {
		out = ByCategory(out, q.Category)
	}
	if q.Tag != "" {
		out = ByTag(out, q.Tag)
	}
	if q.Text == "" {
		return out
	}
	needle := strings.ToLower(q.Text)
	return filter(out, func(e models.Entry) bool {
		if strings.Contains(strings.ToLower(e.Title), needle) ||
			strings.Contains(strings.ToLower(e.Description), needle) ||
			strings.Contains(strings.ToLower(e.Body), needle) {
			return true
		}
		for _, t := range e.Tags {
			if strings.Contains(strings.ToLower(t), needle) {
				return true
			}
		}
		return false
	})
}

func filter(entries []models.Entry, keep func(models.Entry) bool) []models.Entry {
	out := []models.Entry{}
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
