package content

import (
	"slices"
	"strings"

	"github.com/starford/furrow/internal/models"
)

// Sort orders.
const (
	SortDate       = "date"
	SortTitle      = "title"
	SortComplexity = "complexity"
)

// SortByDate orders entries newest first. Entries without a date sort last.
func SortByDate(entries []models.Entry) {
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return b.Date.Compare(a.Date)
	})
}

// SortByTitle orders entries alphabetically, ignoring case.
func SortByTitle(entries []models.Entry) {
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		if c := strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
}

// SortByComplexity orders entries by descending complexity. Zero counts as 1.
func SortByComplexity(entries []models.Entry) {
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		return complexity(b) - complexity(a)
	})
}

// SortByPriority orders news entries by priority, then newest first.
func SortByPriority(entries []models.Entry) {
	slices.SortStableFunc(entries, func(a, b models.Entry) int {
		if a.Priority != b.Priority {
			return b.Priority - a.Priority
		}
		return b.Date.Compare(a.Date)
	})
}

// SortBy applies the named order. Unknown names leave entries untouched and
// report false.
func SortBy(entries []models.Entry, order string) bool {
	switch order {
	case "", SortDate:
		SortByDate(entries)
	case SortTitle:
		SortByTitle(entries)
	case SortComplexity:
		SortByComplexity(entries)
	default:
		return false
	}
	return true
}

func complexity(e models.Entry) int {
	if e.Complexity == 0 {
		return 1
	}
	return e.Complexity
}
