package exercise

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/dataset"
	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/notation"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

// Normalizer turns raw records from any source into Exercises. Bad input is
// never fatal: the result is marked Degraded instead.
type Normalizer struct {
	oracle oracle.Oracle
	logger *zap.Logger
}

func NewNormalizer(o oracle.Oracle, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{oracle: o, logger: logger}
}

func (n *Normalizer) FromDataset(idx int, e dataset.Entry) Exercise {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		id = "dataset-" + strconv.Itoa(idx+1)
	}
	explicit := make([]MoveAnnotation, 0, len(e.Analysis))
	for _, a := range e.Analysis {
		explicit = append(explicit, MoveAnnotation{Move: strings.TrimSpace(a.Move), Evaluation: a.Evaluation, IsCritical: a.IsCritical})
	}
	return n.build(Exercise{
		ID:       id,
		Name:     strings.TrimSpace(e.Name),
		MaxMoves: e.MaxMoves,
		Color:    ParseColor(e.Color),
		Source:   SourceDataset,
		PGN:      e.PGN,
	}, e.InitialFEN, explicit)
}

func (n *Normalizer) FromLocal(r localstore.Record) Exercise {
	return n.build(Exercise{
		ID:        strings.TrimSpace(r.ID),
		Name:      strings.TrimSpace(r.Name),
		CreatedAt: r.CreatedAt,
		Color:     ParseColor(r.Color),
		Source:    SourceLocal,
		PGN:       r.PGN,
		BackendID: r.BackendID,
		IsPublic:  r.IsPublic,
	}, r.InitialFEN, nil)
}

func (n *Normalizer) FromRemote(r trainerdto.ExerciseResource) Exercise {
	explicit := make([]MoveAnnotation, 0, len(r.Analysis))
	for _, a := range r.Analysis {
		explicit = append(explicit, MoveAnnotation{Move: strings.TrimSpace(a.Move), Evaluation: a.Evaluation, IsCritical: a.IsCritical})
	}
	backendID := strconv.FormatInt(r.ID, 10)
	return n.build(Exercise{
		ID:        "backend-" + backendID,
		Name:      strings.TrimSpace(r.Name),
		CreatedAt: r.CreatedAt,
		Color:     ParseColor(r.Color),
		Source:    SourceRemote,
		PGN:       r.PGN,
		BackendID: backendID,
		IsPublic:  r.IsPublic,
	}, r.InitialFEN, explicit)
}

func (n *Normalizer) build(ex Exercise, fen string, explicit []MoveAnnotation) Exercise {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		fen = oracle.StartFEN
	}
	start, err := n.oracle.Start(fen)
	if err != nil {
		n.logger.Warn("exercise_invalid_fen", zap.String("exercise_id", ex.ID), zap.String("fen", fen), zap.Error(err))
		fen = oracle.StartFEN
		start, _ = n.oracle.Start(fen)
		ex.Degraded = true
	}
	ex.InitialFEN = fen

	if len(explicit) > 0 {
		ex.Analysis = explicit
	} else {
		ex.Analysis = annotate(notation.Normalize(ex.PGN, 0))
	}

	moves := ex.Moves()
	if ok, at := n.playable(start, moves); !ok {
		n.logger.Warn("exercise_unplayable", zap.String("exercise_id", ex.ID), zap.Int("ply", at+1))
		ex.Degraded = true
	}
	if ex.Name == "" {
		ex.Name = notation.DisplayName(string(ex.Color), moves)
	}
	if fen == oracle.StartFEN {
		if code, title := n.oracle.OpeningLabel(fen, moves); code != "" {
			ex.Opening = code + " " + title
		}
	}
	return ex
}

// playable replays moves from start and reports the first rejected ply.
func (n *Normalizer) playable(start *oracle.Position, moves []string) (bool, int) {
	pos := start
	for i, mv := range moves {
		if notation.IsResult(mv) {
			return true, i
		}
		next, _, ok := n.oracle.ApplyNotation(pos, mv)
		if !ok {
			return false, i
		}
		pos = next
	}
	return true, len(moves)
}
