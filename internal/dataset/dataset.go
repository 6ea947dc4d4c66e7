// Package dataset serves the bundled exercise collection.
package dataset

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"
)

//go:embed exercises.yaml
var bundled embed.FS

// AnalysisEntry is an optional explicit annotation for one ply.
type AnalysisEntry struct {
	Move       string  `yaml:"move" json:"move"`
	Evaluation float64 `yaml:"evaluation" json:"evaluation"`
	IsCritical bool    `yaml:"isCritical" json:"isCritical"`
}

// Entry is one raw dataset record.
type Entry struct {
	ID         string          `yaml:"id" json:"id"`
	Name       string          `yaml:"name" json:"name"`
	PGN        string          `yaml:"pgn" json:"pgn"`
	InitialFEN string          `yaml:"initialFen" json:"initialFen"`
	Color      string          `yaml:"color,omitempty" json:"color,omitempty"`
	MaxMoves   int             `yaml:"maxMoves,omitempty" json:"maxMoves,omitempty"`
	Analysis   []AnalysisEntry `yaml:"analysis,omitempty" json:"analysis,omitempty"`
}

// Store reads the dataset once and hands out copies. An empty path means the
// embedded collection.
type Store struct {
	path string

	mu      sync.Mutex
	loaded  bool
	entries []Entry
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

// Entries returns the dataset in source order.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		entries, err := s.read()
		if err != nil {
			return nil, err
		}
		s.entries = entries
		s.loaded = true
	}
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		e.Analysis = append([]AnalysisEntry(nil), e.Analysis...)
		out[i] = e
	}
	return out, nil
}

// Reload drops the cached entries; the next Entries call re-reads the source.
func (s *Store) Reload() {
	s.mu.Lock()
	s.loaded = false
	s.entries = nil
	s.mu.Unlock()
}

func (s *Store) read() ([]Entry, error) {
	var (
		raw []byte
		err error
	)
	if s.path != "" {
		raw, err = os.ReadFile(s.path)
	} else {
		raw, err = fs.ReadFile(bundled, "exercises.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML (or JSON) array of entries.
func Parse(raw []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return entries, nil
}
