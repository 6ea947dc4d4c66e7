package trainerdto

import "time"

type Annotation struct {
	Move       string  `json:"move"`
	Evaluation float64 `json:"evaluation"`
	IsCritical bool    `json:"isCritical"`
}

// ExerciseResource is the remote persistence service representation.
type ExerciseResource struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	InitialFEN string       `json:"initialFen"`
	PGN        string       `json:"pgn"`
	Analysis   []Annotation `json:"analysis,omitempty"`
	Color      string       `json:"color"`
	IsPublic   bool         `json:"isPublic"`
	CreatedAt  time.Time    `json:"createdAt"`
}

type ExerciseSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Source   string `json:"source"`
	Opening  string `json:"opening,omitempty"`
	Plies    int    `json:"plies"`
	Degraded bool   `json:"degraded,omitempty"`
}
