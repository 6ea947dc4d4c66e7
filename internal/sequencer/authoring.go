package sequencer

import (
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/oracle"
)

// StartAuthoring switches to free play from fen: any legal move is accepted
// and recorded, nothing is validated against a line.
func (s *Sequencer) StartAuthoring(fen string) {
	s.reset()
	start, err := s.oracle.Start(fen)
	if err != nil {
		s.logger.Warn("sequencer_invalid_fen", zap.String("fen", fen), zap.Error(err))
		start, _ = s.oracle.Start(oracle.StartFEN)
	}
	s.start = start
	s.live = start
	s.ex.Color = exercise.ParseColor(start.Turn())
	s.state = StateAuthoring
}

func (s *Sequencer) authorMove(req oracle.MoveRequest) bool {
	next, san, ok := s.oracle.ApplyMove(s.live, req)
	if !ok {
		s.highlight = HighlightFailure
		s.emit(Event{Kind: EventMoveRejected, Ply: len(s.authored), Move: req.UCI()})
		return false
	}
	s.live = next
	s.authored = append(s.authored, san)
	s.highlight = HighlightSuccess
	s.emit(Event{Kind: EventMoveAccepted, Ply: len(s.authored) - 1, Move: san})
	return true
}

// ClearHistory drops every authored move.
func (s *Sequencer) ClearHistory() {
	if s.resumeMode() != StateAuthoring {
		return
	}
	s.ResumeTraining()
	s.authored = nil
	s.rebuild()
}

// RemoveLastMove drops the last authored move.
func (s *Sequencer) RemoveLastMove() {
	if s.resumeMode() != StateAuthoring || len(s.authored) == 0 {
		return
	}
	s.ResumeTraining()
	s.authored = s.authored[:len(s.authored)-1]
	s.live = s.oracle.Undo(s.live)
	s.highlight = HighlightNone
}

// rebuild replays the authored list from the start position.
func (s *Sequencer) rebuild() {
	pos := s.start
	for i, san := range s.authored {
		next, _, ok := s.oracle.ApplyNotation(pos, san)
		if !ok {
			s.authored = s.authored[:i]
			break
		}
		pos = next
	}
	s.live = pos
	s.highlight = HighlightNone
}
