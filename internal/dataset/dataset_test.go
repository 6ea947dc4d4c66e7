package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_EmbeddedCollection(t *testing.T) {
	entries, err := NewStore("").Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 9 {
		t.Fatalf("entries = %d, want 9", len(entries))
	}
	if entries[0].ID != "ruy-lopez-1" {
		t.Fatalf("source order lost: first = %q", entries[0].ID)
	}
}

func TestStore_CopiesAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set.yaml")
	write := func(body string) {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(`- id: a
  pgn: "1. e4 e5"
  analysis: [{move: e4, evaluation: 0.2}]
`)
	s := NewStore(path)
	first, err := s.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	first[0].Analysis[0].Move = "mutated"

	again, _ := s.Entries()
	if again[0].Analysis[0].Move != "e4" {
		t.Fatalf("cached entries were mutated through a copy")
	}

	write(`[{"id": "b", "pgn": "1. d4"}, {"id": "c", "pgn": "1. c4"}]`)
	cached, _ := s.Entries()
	if len(cached) != 1 {
		t.Fatalf("entries re-read without Reload")
	}
	s.Reload()
	fresh, err := s.Entries()
	if err != nil || len(fresh) != 2 || fresh[0].ID != "b" {
		t.Fatalf("after reload = %+v, %v", fresh, err)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("id: [unterminated")); err == nil {
		t.Fatalf("expected parse error")
	}
}
