package exercise

import (
	"testing"
	"time"
)

func ids(list []Exercise) []string {
	out := make([]string, len(list))
	for i, ex := range list {
		out[i] = ex.ID
	}
	return out
}

func TestSort_NaturalID(t *testing.T) {
	in := []Exercise{{ID: "ruy-10"}, {ID: "ruy-2"}, {ID: "ruy-1"}, {ID: "italian-3"}, {ID: "ruy-2b"}}
	got := ids(Sort(in, SortNaturalID))
	want := []string{"italian-3", "ruy-1", "ruy-2", "ruy-2b", "ruy-10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if in[0].ID != "ruy-10" {
		t.Fatalf("input must not be reordered")
	}
}

func TestNaturalLess_Transitive(t *testing.T) {
	ordered := []string{"x-1", "x-1a", "x-2", "x-2b", "x-10", "x-10a", "x-a", "y-3"}
	for i := range ordered {
		for j := range ordered {
			if got, want := NaturalLess(ordered[i], ordered[j]), i < j; got != want {
				t.Fatalf("NaturalLess(%q, %q) = %v, want %v", ordered[i], ordered[j], got, want)
			}
		}
	}
	if !NaturalLess("line-007", "line-8") || NaturalLess("line-8", "line-007") {
		t.Fatalf("leading zeros must compare by value")
	}
}

func TestSort_ByDate(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []Exercise{{ID: "a", CreatedAt: t0.Add(time.Hour)}, {ID: "b", CreatedAt: t0}, {ID: "c", CreatedAt: t0.Add(2 * time.Hour)}}
	if got := ids(Sort(in, SortNewest)); got[0] != "c" || got[2] != "b" {
		t.Fatalf("newest: %v", got)
	}
	if got := ids(Sort(in, ParseSortBy("OLDEST"))); got[0] != "b" || got[2] != "c" {
		t.Fatalf("oldest: %v", got)
	}
}

func TestSearchFilterPick(t *testing.T) {
	in := []Exercise{
		{ID: "ruy-1", Name: "Ruy Lopez", Color: White, Source: SourceDataset, Opening: "C60 Ruy Lopez"},
		{ID: "sic-1", Name: "Najdorf", Color: Black, Source: SourceDataset, Opening: "B90 Sicilian Defense: Najdorf Variation"},
		{ID: "custom-1", Name: "My line", Color: Black, Source: SourceLocal},
	}
	if got := ids(Search(in, "sicilian")); len(got) != 1 || got[0] != "sic-1" {
		t.Fatalf("search: %v", got)
	}
	if got := Search(in, ""); len(got) != 3 {
		t.Fatalf("empty query keeps everything")
	}
	if got := ids(Filter(in, Criteria{Color: Black, Source: SourceLocal})); len(got) != 1 || got[0] != "custom-1" {
		t.Fatalf("filter: %v", got)
	}
	pick, ok := Pick(in, "ruy-1", func(n int) int { return n - 1 })
	if !ok || pick.ID != "custom-1" {
		t.Fatalf("pick = %+v ok=%v", pick, ok)
	}
	if _, ok := Pick(in[:1], "ruy-1", func(int) int { return 0 }); ok {
		t.Fatalf("nothing to pick besides the current exercise")
	}
}
