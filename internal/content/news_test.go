package content

import (
	"testing"

	"github.com/starford/furrow/internal/models"
)

func TestFeatured_TopsUp(t *testing.T) {
	entries := []models.Entry{
		{ID: "a"}, {ID: "f1", Featured: true}, {ID: "b"}, {ID: "c"},
	}
	got := ids(Featured(entries, 3))
	want := []string{"f1", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFeatured_OnlyFeaturedWhenEnough(t *testing.T) {
	entries := []models.Entry{
		{ID: "f1", Featured: true}, {ID: "a"}, {ID: "f2", Featured: true},
	}
	got := ids(Featured(entries, 2))
	if len(got) != 2 || got[0] != "f1" || got[1] != "f2" {
		t.Errorf("got %v", got)
	}
}

func TestLatest(t *testing.T) {
	entries := []models.Entry{{ID: "a"}, {ID: "b"}}
	if got := Latest(entries, 5); len(got) != 2 {
		t.Errorf("len = %d", len(got))
	}
	if got := Latest(entries, 1); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("got %v", ids(got))
	}
}
