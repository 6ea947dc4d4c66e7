// Package exercise holds the exercise model and merges the bundled, local and
// remote collections into one list.
package exercise

import (
	"errors"
	"strings"
	"time"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

var ErrExerciseNotFound = errors.New("exercise not found")

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// ParseColor defaults anything unrecognised to White.
func ParseColor(s string) Color {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b":
		return Black
	default:
		return White
	}
}

type Source string

const (
	SourceDataset Source = "dataset"
	SourceLocal   Source = "local"
	SourceRemote  Source = "remote"
)

type MoveAnnotation struct {
	Move       string  `json:"move"`
	Evaluation float64 `json:"evaluation"`
	IsCritical bool    `json:"isCritical"`
}

type Exercise struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	InitialFEN string           `json:"initialFen"`
	Analysis   []MoveAnnotation `json:"analysis"`
	CreatedAt  time.Time        `json:"createdAt"`
	MaxMoves   int              `json:"maxMoves,omitempty"`
	Color      Color            `json:"color"`
	Source     Source           `json:"source"`
	PGN        string           `json:"pgn,omitempty"`
	Opening    string           `json:"opening,omitempty"`
	BackendID  string           `json:"backendId,omitempty"`
	IsPublic   bool             `json:"isPublic,omitempty"`
	// Degraded marks a record whose FEN or notation could not be used as is.
	Degraded bool `json:"degraded,omitempty"`
}

// Moves returns the SAN of every annotation in order.
func (e Exercise) Moves() []string {
	out := make([]string, len(e.Analysis))
	for i, a := range e.Analysis {
		out[i] = a.Move
	}
	return out
}

func (e Exercise) Summary() trainerdto.ExerciseSummary {
	return trainerdto.ExerciseSummary{
		ID:       e.ID,
		Name:     e.Name,
		Color:    string(e.Color),
		Source:   string(e.Source),
		Opening:  e.Opening,
		Plies:    len(e.Analysis),
		Degraded: e.Degraded,
	}
}

// Find returns the exercise with id.
func Find(list []Exercise, id string) (Exercise, error) {
	id = strings.TrimSpace(id)
	for _, ex := range list {
		if ex.ID == id {
			return ex, nil
		}
	}
	return Exercise{}, ErrExerciseNotFound
}

func annotate(moves []string) []MoveAnnotation {
	out := make([]MoveAnnotation, len(moves))
	for i, mv := range moves {
		out[i] = MoveAnnotation{Move: mv}
	}
	return out
}
