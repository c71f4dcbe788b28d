package content

import (
	"testing"

	"github.com/starford/furrow/internal/models"
)

func sample() []models.Entry {
	return []models.Entry{
		{ID: "1", Title: "Drip Irrigation", Description: "Water savings", Categories: []string{"water"}, Tags: []string{"irrigation", "iot"}},
		{ID: "2", Title: "Soil Sensors", Body: "Measuring moisture in the field", Categories: []string{"tech", "water"}, Tags: []string{"IoT"}},
		{ID: "3", Title: "Harvest report", Categories: []string{"news"}, Tags: []string{"harvest"}},
	}
}

func TestTaxonomies(t *testing.T) {
	cats := Categories(sample())
	if len(cats) != 3 || cats[0] != "news" || cats[2] != "water" {
		t.Errorf("categories = %v", cats)
	}
	tags := Tags(sample())
	if len(tags) != 4 || tags[0] != "IoT" {
		t.Errorf("tags = %v", tags)
	}
}

func TestSearch(t *testing.T) {
	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"empty query returns all", Query{}, []string{"1", "2", "3"}},
		{"title match ignores case", Query{Text: "SOIL"}, []string{"2"}},
		{"body match", Query{Text: "moisture"}, []string{"2"}},
		{"tag match", Query{Text: "iot"}, []string{"1", "2"}},
		{"category filter", Query{Category: "water"}, []string{"1", "2"}},
		{"tag filter is exact", Query{Tag: "iot"}, []string{"1"}},
		{"filters and text", Query{Text: "water", Category: "water"}, []string{"1"}},
		{"no match", Query{Text: "tractor"}, []string{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ids(Search(sample(), c.q))
			if len(got) != len(c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("got %v, want %v", got, c.want)
				}
			}
		})
	}
}
