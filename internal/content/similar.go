package content

import (
	"slices"

	"github.com/starford/furrow/internal/models"
)

// Similar ranks pool against ref. A candidate earns one vote for sharing any
// category and one for sharing any tag; only candidates with more than one
// vote are returned, most votes first, each at most once. ref itself is
// excluded by ID. Equal-vote candidates keep their pool order.
func Similar(ref models.Entry, pool []models.Entry) []models.Entry {
	var merged []models.Entry
	for _, e := range pool {
		if sharesAny(ref.Categories, e.Categories) {
			merged = append(merged, e)
		}
	}
	for _, e := range pool {
		if sharesAny(ref.Tags, e.Tags) {
			merged = append(merged, e)
		}
	}

	votes := make(map[string]int, len(merged))
	candidates := merged[:0:0]
	for _, e := range merged {
		if e.ID == ref.ID {
			continue
		}
		votes[e.ID]++
		candidates = append(candidates, e)
	}

	slices.SortStableFunc(candidates, func(a, b models.Entry) int {
		return votes[b.ID] - votes[a.ID]
	})

	seen := make(map[string]struct{}, len(votes))
	out := []models.Entry{}
	for _, e := range candidates {
		if votes[e.ID] <= 1 {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

func sharesAny(want, have []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}
