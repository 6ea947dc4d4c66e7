package exercise

import (
	"sort"
	"strings"
)

type SortBy string

const (
	SortNaturalID SortBy = "natural-id"
	SortName      SortBy = "name"
	SortNewest    SortBy = "newest"
	SortOldest    SortBy = "oldest"
)

// ParseSortBy falls back to natural id order.
func ParseSortBy(s string) SortBy {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case SortName:
		return SortName
	case SortNewest:
		return SortNewest
	case SortOldest:
		return SortOldest
	default:
		return SortNaturalID
	}
}

// Sort returns a sorted copy; list is not modified.
func Sort(list []Exercise, by SortBy) []Exercise {
	out := append([]Exercise(nil), list...)
	var less func(a, b Exercise) bool
	switch by {
	case SortName:
		less = func(a, b Exercise) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	case SortNewest:
		less = func(a, b Exercise) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortOldest:
		less = func(a, b Exercise) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b Exercise) bool { return NaturalLess(a.ID, b.ID) }
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// NaturalLess orders "ruy-lopez-2" before "ruy-lopez-10". Ids are compared
// run by run: digit runs by value, everything else as text.
func NaturalLess(a, b string) bool {
	if c := naturalCompare(a, b); c != 0 {
		return c < 0
	}
	return a < b
}

func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ra, restA := nextRun(a)
		rb, restB := nextRun(b)
		da, db := isDigit(ra[0]), isDigit(rb[0])
		switch {
		case da && db:
			if c := compareDigits(ra, rb); c != 0 {
				return c
			}
		case da != db:
			// numbers sort before text
			if da {
				return -1
			}
			return 1
		default:
			if c := strings.Compare(ra, rb); c != 0 {
				return c
			}
		}
		a, b = restA, restB
	}
	return len(a) - len(b)
}

// nextRun splits off the leading run of digits or non-digits.
func nextRun(s string) (run, rest string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func compareDigits(a, b string) int {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		return len(ta) - len(tb)
	}
	return strings.Compare(ta, tb)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Search keeps exercises whose name, id or opening contains q, ignoring case.
func Search(list []Exercise, q string) []Exercise {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]Exercise, 0, len(list))
	for _, ex := range list {
		if q == "" ||
			strings.Contains(strings.ToLower(ex.Name), q) ||
			strings.Contains(strings.ToLower(ex.ID), q) ||
			strings.Contains(strings.ToLower(ex.Opening), q) {
			out = append(out, ex)
		}
	}
	return out
}

// Criteria zero values match everything.
type Criteria struct {
	Color  Color
	Source Source
}

func Filter(list []Exercise, f Criteria) []Exercise {
	out := make([]Exercise, 0, len(list))
	for _, ex := range list {
		if f.Color != "" && ex.Color != f.Color {
			continue
		}
		if f.Source != "" && ex.Source != f.Source {
			continue
		}
		out = append(out, ex)
	}
	return out
}

// Pick chooses a random exercise other than excludeID. intn is typically
// rand.Intn.
func Pick(list []Exercise, excludeID string, intn func(int) int) (Exercise, bool) {
	candidates := make([]Exercise, 0, len(list))
	for _, ex := range list {
		if ex.ID != excludeID {
			candidates = append(candidates, ex)
		}
	}
	if len(candidates) == 0 {
		return Exercise{}, false
	}
	return candidates[intn(len(candidates))], true
}
