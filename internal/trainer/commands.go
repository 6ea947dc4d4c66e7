package trainer

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/authoring"
	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/internal/sequencer"
	"github.com/park285/cheese-trainer/internal/stats"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

func (s *Session) handle(ctx context.Context, cmd trainerdto.Command) trainerdto.Reply {
	switch strings.TrimSpace(cmd.Type) {
	case trainerdto.CmdList:
		return s.handleList(cmd)
	case trainerdto.CmdLoad:
		ex, err := exercise.Find(s.exercises, cmd.ExerciseID)
		if err != nil {
			return s.fail(CodeNotFound, s.deps.Catalog.Text("trainer.not_found", map[string]string{"ID": cmd.ExerciseID}))
		}
		return s.load(ex)
	case trainerdto.CmdRandom:
		cur, _ := s.seq.Exercise()
		ex, ok := exercise.Pick(s.exercises, cur.ID, s.opts.Intn)
		if !ok {
			return s.fail(CodeNotFound, s.deps.Catalog.Text("trainer.not_found", map[string]string{"ID": "random"}))
		}
		return s.load(ex)
	case trainerdto.CmdMove:
		return s.handleMove(cmd)
	case trainerdto.CmdGoto:
		s.seq.GoToHistoryIndex(cmd.Index)
		return s.ok("")
	case trainerdto.CmdKey:
		switch strings.ToLower(strings.TrimSpace(cmd.Key)) {
		case "left", "arrowleft":
			s.seq.HandleKey(sequencer.KeyLeft)
		case "right", "arrowright":
			s.seq.HandleKey(sequencer.KeyRight)
		default:
			return s.fail(CodeBadRequest, "unknown key "+cmd.Key)
		}
		return s.ok("")
	case trainerdto.CmdResume:
		s.seq.ResumeTraining()
		return s.ok("")
	case trainerdto.CmdAuthorStart:
		fen := strings.TrimSpace(cmd.FEN)
		if fen == "" {
			fen = oracle.StartFEN
		}
		s.seq.StartAuthoring(fen)
		return s.ok("")
	case trainerdto.CmdAuthorClear:
		s.seq.ClearHistory()
		return s.ok("")
	case trainerdto.CmdAuthorUndo:
		s.seq.RemoveLastMove()
		return s.ok("")
	case trainerdto.CmdSubmit:
		if s.deps.Authoring == nil {
			return s.fail(CodeInternal, "authoring is not configured")
		}
		ex, err := s.deps.Authoring.Save(ctx, authoring.Request{
			Device:     s.device,
			Credential: s.credential,
			Raw:        cmd.PGN,
			Name:       cmd.Name,
			Color:      exercise.ParseColor(cmd.Color),
			Public:     cmd.Public,
		})
		return s.saved(ex, err)
	case trainerdto.CmdPromote:
		if s.deps.Authoring == nil {
			return s.fail(CodeInternal, "authoring is not configured")
		}
		color := exercise.ParseColor(cmd.Color)
		if strings.TrimSpace(cmd.Color) == "" {
			color = s.seq.Snapshot().Orientation
		}
		ex, err := s.deps.Authoring.SavePromotion(ctx, authoring.PromoteRequest{
			Device:     s.device,
			Credential: s.credential,
			Moves:      s.seq.PlayedMoves(),
			Name:       cmd.Name,
			Color:      color,
			Public:     cmd.Public,
		})
		return s.saved(ex, err)
	case trainerdto.CmdReload:
		if s.deps.Merger == nil {
			return s.fail(CodeInternal, "exercises are not configured")
		}
		s.deps.Merger.Reload()
		s.refresh()
		return trainerdto.Reply{OK: true, Message: s.deps.Catalog.Text("trainer.reloaded", map[string]int{"Count": len(s.exercises)})}
	default:
		return s.fail(CodeUnknownCommand, s.deps.Catalog.Text("trainer.unknown_command", map[string]string{"Type": cmd.Type}))
	}
}

func (s *Session) handleList(cmd trainerdto.Command) trainerdto.Reply {
	list := exercise.Search(s.exercises, cmd.Search)
	crit := exercise.Criteria{Source: exercise.Source(strings.ToLower(strings.TrimSpace(cmd.Source)))}
	if strings.TrimSpace(cmd.Color) != "" {
		crit.Color = exercise.ParseColor(cmd.Color)
	}
	list = exercise.Sort(exercise.Filter(list, crit), exercise.ParseSortBy(cmd.Sort))
	out := make([]trainerdto.ExerciseSummary, len(list))
	for i, ex := range list {
		out[i] = ex.Summary()
	}
	return trainerdto.Reply{OK: true, Exercises: out}
}

func (s *Session) handleMove(cmd trainerdto.Command) trainerdto.Reply {
	accepted := s.seq.AttemptMove(cmd.From, cmd.To, cmd.Promotion)
	if !accepted && s.opts.RandomMode && s.sawMismatch() {
		cur, _ := s.seq.Exercise()
		if next, ok := exercise.Pick(s.exercises, cur.ID, s.opts.Intn); ok {
			s.flush()
			s.logger.Debug("session_random_advance", zap.String("from", cur.ID), zap.String("to", next.ID))
			return s.load(next)
		}
	}
	st := s.boardState()
	return trainerdto.Reply{OK: accepted, State: &st}
}

func (s *Session) sawMismatch() bool {
	for _, e := range s.pending {
		if e.Kind == sequencer.EventMismatch {
			return true
		}
	}
	return false
}

func (s *Session) load(ex exercise.Exercise) trainerdto.Reply {
	s.seq.LoadExercise(ex)
	s.record(ex.ID, stats.Delta{Attempts: 1, At: s.opts.Now()})
	s.logger.Info("session_exercise_loaded", zap.String("exercise_id", ex.ID), zap.String("source", string(ex.Source)))
	sum := ex.Summary()
	st := s.boardState()
	return trainerdto.Reply{
		OK:       true,
		Message:  s.deps.Catalog.Text("trainer.loaded", map[string]string{"Name": ex.Name}),
		State:    &st,
		Exercise: &sum,
	}
}

// saved turns an authoring result into a reply. The local list is re-read
// right away so the new exercise can be loaded; the remote mirror follows in
// the background.
func (s *Session) saved(ex *exercise.Exercise, err error) trainerdto.Reply {
	if err != nil {
		var verr *authoring.ValidationError
		if errors.As(err, &verr) {
			return s.fail(string(verr.Code), verr.Message)
		}
		s.logger.Error("session_save_failed", zap.Error(err))
		return s.fail(CodeInternal, err.Error())
	}
	s.refreshBase()
	s.mirrorPending()
	sum := ex.Summary()
	return trainerdto.Reply{
		OK:       true,
		Message:  s.deps.Catalog.Text("trainer.saved", map[string]string{"Name": ex.Name}),
		Exercise: &sum,
	}
}

func (s *Session) ok(msg string) trainerdto.Reply {
	st := s.boardState()
	return trainerdto.Reply{OK: true, Message: msg, State: &st}
}

func (s *Session) fail(code, msg string) trainerdto.Reply {
	return trainerdto.Reply{OK: false, Message: msg, Error: &trainerdto.Error{Code: code, Message: msg}}
}
