package content

import "github.com/starford/furrow/internal/models"

// Featured returns up to limit featured entries, topped up with the leading
// non-featured entries when there are too few. Input order is kept.
func Featured(entries []models.Entry, limit int) []models.Entry {
	if limit <= 0 {
		return []models.Entry{}
	}
	out := make([]models.Entry, 0, limit)
	for _, e := range entries {
		if e.Featured && len(out) < limit {
			out = append(out, e)
		}
	}
	for _, e := range entries {
		if len(out) >= limit {
			break
		}
		if !e.Featured {
			out = append(out, e)
		}
	}
	return out
}

// Latest returns the first limit entries.
func Latest(entries []models.Entry, limit int) []models.Entry {
	if limit < 0 {
		limit = 0
	}
	if limit > len(entries) {
		limit = len(entries)
	}
	return append([]models.Entry{}, entries[:limit]...)
}
