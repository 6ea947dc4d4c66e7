// Package sequencer walks a trainee through an exercise line, validating each
// attempted move against the rules oracle and the recorded annotation.
//
// A Sequencer is not safe for concurrent use. All calls, including the
// callbacks handed to the Scheduler, must come from one goroutine.
package sequencer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/notation"
	"github.com/park285/cheese-trainer/internal/obslog"
	"github.com/park285/cheese-trainer/internal/oracle"
)

type Sequencer struct {
	oracle oracle.Oracle
	sched  Scheduler
	opts   Options
	logger *zap.Logger

	state State
	// resumeTo is the state restored when scrubbing ends.
	resumeTo State

	ex    exercise.Exercise
	line  []string
	start *oracle.Position
	live  *oracle.Position
	ply   int

	view         *oracle.Position
	historyIndex int

	mistakes  []int
	highlight Highlight
	completed bool
	diverged  bool

	awaiting    bool
	generation  uint64
	cancelReply Cancel

	authored []string
}

func New(o oracle.Oracle, sched Scheduler, opts Options) *Sequencer {
	return &Sequencer{
		oracle:       o,
		sched:        sched,
		opts:         opts,
		logger:       obslog.Or(opts.Logger),
		state:        StateIdle,
		historyIndex: -1,
		highlight:    HighlightNone,
	}
}

// SetListener replaces the event listener.
func (s *Sequencer) SetListener(l Listener) { s.opts.Listener = l }

func (s *Sequencer) State() State { return s.state }

// Exercise returns the loaded exercise; false outside training.
func (s *Sequencer) Exercise() (exercise.Exercise, bool) {
	return s.ex, s.resumeMode() == StateTraining
}

// LoadExercise resets the session to ex and plays the opening plies the
// trainee is not asked to find.
func (s *Sequencer) LoadExercise(ex exercise.Exercise) {
	s.reset()
	start, err := s.oracle.Start(ex.InitialFEN)
	if err != nil {
		s.logger.Warn("sequencer_invalid_fen", zap.String("exercise_id", ex.ID), zap.Error(err))
		start, _ = s.oracle.Start(oracle.StartFEN)
	}
	if ex.Color != exercise.Black {
		ex.Color = exercise.White
	}
	s.ex = ex
	s.line = ex.Moves()
	s.start = start
	s.live = start
	s.state = StateTraining

	s.autoPlay()
	s.logger.Debug("sequencer_loaded",
		zap.String("exercise_id", ex.ID),
		zap.String("color", string(ex.Color)),
		zap.Int("auto_plies", s.ply),
	)
	if s.lineFinished(s.live) {
		s.complete(false)
	}
}

// autoPlies is the number of leading plies played on load: the opponent's
// first ply when the start position has the opponent to move, plus two per
// configured full move. It never passes the line end or the ply cap.
func (s *Sequencer) autoPlies() int {
	n := 2 * s.opts.AutoPlayFullMoves
	if n < 0 {
		n = 0
	}
	if s.start.Turn() != string(s.ex.Color) {
		n++
	}
	if n > len(s.line) {
		n = len(s.line)
	}
	if s.ex.MaxMoves > 0 && n > s.ex.MaxMoves {
		n = s.ex.MaxMoves
	}
	return n
}

func (s *Sequencer) autoPlay() {
	target := s.autoPlies()
	for s.ply < target {
		tok := s.line[s.ply]
		if notation.IsResult(tok) {
			return
		}
		next, _, ok := s.oracle.ApplyNotation(s.live, tok)
		if !ok {
			s.logger.Warn("sequencer_autoplay_stopped", zap.String("exercise_id", s.ex.ID), zap.Int("ply", s.ply), zap.String("move", tok))
			return
		}
		s.live = next
		s.ply++
		if next.Terminal() {
			return
		}
	}
}

// AttemptMove validates a board move. It returns true only when the move is
// legal and matches the line (or, in authoring mode, is legal).
func (s *Sequencer) AttemptMove(from, to, promotion string) bool {
	switch s.state {
	case StateIdle:
		return false
	case StateScrubbing:
		s.ResumeTraining()
		return false
	case StateAuthoring:
		return s.authorMove(oracle.MoveRequest{From: from, To: to, Promotion: promotion})
	}

	if s.completed || s.awaiting || s.ply >= len(s.line) || s.capReached() {
		return false
	}
	req := oracle.MoveRequest{From: from, To: to, Promotion: promotion}
	next, san, ok := s.oracle.ApplyMove(s.live, req)
	if !ok {
		s.highlight = HighlightFailure
		s.emit(Event{Kind: EventMoveRejected, Ply: s.ply, Move: req.UCI()})
		return false
	}

	expected := s.line[s.ply]
	if !notation.SameMove(san, expected) {
		s.addMistake(s.ply)
		s.highlight = HighlightFailure
		s.logger.Debug("sequencer_mismatch",
			zap.String("exercise_id", s.ex.ID),
			zap.Int("ply", s.ply),
			zap.String("played", san),
		)
		s.emit(Event{Kind: EventMismatch, Ply: s.ply, Move: san, Expected: expected, Mistakes: len(s.mistakes)})
		return false
	}

	played := s.ply
	s.live = next
	s.ply++
	s.highlight = HighlightSuccess
	s.emit(Event{Kind: EventMoveAccepted, Ply: played, Move: san})

	if s.lineFinished(next) {
		s.complete(false)
		return true
	}
	s.scheduleReply()
	return true
}

func (s *Sequencer) capReached() bool {
	return s.ex.MaxMoves > 0 && s.ply >= s.ex.MaxMoves
}

// lineFinished reports whether nothing is left to play after pos.
func (s *Sequencer) lineFinished(pos *oracle.Position) bool {
	return s.ply >= len(s.line) || notation.IsResult(s.line[s.ply]) || pos.Terminal() || s.capReached()
}

func (s *Sequencer) scheduleReply() {
	s.awaiting = true
	gen, ply := s.generation, s.ply
	s.cancelReply = s.sched.AfterFunc(s.opts.ReplyDelay, func() { s.fireReply(gen, ply) })
}

// fireReply applies the recorded opponent ply. It is dropped when the
// session moved on since it was scheduled.
func (s *Sequencer) fireReply(gen uint64, ply int) {
	if gen != s.generation || ply != s.ply || !s.awaiting {
		s.logger.Debug("sequencer_stale_reply", zap.Uint64("generation", gen), zap.Int("ply", ply))
		return
	}
	s.awaiting = false
	s.cancelReply = nil

	tok := s.line[ply]
	next, san, ok := s.oracle.ApplyNotation(s.live, tok)
	if !ok {
		s.logger.Warn("sequencer_line_diverged", zap.String("exercise_id", s.ex.ID), zap.Int("ply", ply), zap.String("move", tok))
		s.complete(true)
		return
	}
	s.live = next
	s.ply++
	s.emit(Event{Kind: EventOpponentReplied, Ply: ply, Move: san})
	if s.lineFinished(next) {
		s.complete(false)
	}
}

func (s *Sequencer) complete(diverged bool) {
	if s.completed {
		return
	}
	s.completed = true
	s.diverged = diverged
	s.logger.Info("sequencer_completed",
		zap.String("exercise_id", s.ex.ID),
		zap.Int("mistakes", len(s.mistakes)),
		zap.Bool("diverged", diverged),
	)
	s.emit(Event{Kind: EventCompleted, Ply: s.ply, Mistakes: len(s.mistakes), Diverged: diverged})
}

func (s *Sequencer) addMistake(ply int) {
	i := sort.SearchInts(s.mistakes, ply)
	if i < len(s.mistakes) && s.mistakes[i] == ply {
		return
	}
	s.mistakes = append(s.mistakes, 0)
	copy(s.mistakes[i+1:], s.mistakes[i:])
	s.mistakes[i] = ply
}

// GoToHistoryIndex freezes the view at idx plies into the current line.
// Replay stops early at a missing, illegal or result-marker ply.
func (s *Sequencer) GoToHistoryIndex(idx int) {
	if s.state == StateIdle || s.start == nil {
		return
	}
	if idx < 0 {
		idx = 0
	}
	line := s.currentLine()
	pos := s.start
	for i := 0; i < idx && i < len(line); i++ {
		if notation.IsResult(line[i]) {
			break
		}
		next, _, ok := s.oracle.ApplyNotation(pos, line[i])
		if !ok {
			break
		}
		pos = next
	}
	if s.state != StateScrubbing {
		s.resumeTo = s.state
		s.state = StateScrubbing
	}
	s.view = pos
	s.historyIndex = idx
	s.highlight = HighlightNone
}

// ResumeTraining leaves scrubbing and shows the live position again.
func (s *Sequencer) ResumeTraining() {
	if s.state != StateScrubbing {
		return
	}
	s.state = s.resumeTo
	s.view = nil
	s.historyIndex = -1
}

// HandleKey moves the scrub pointer one ply, clamped to the line.
func (s *Sequencer) HandleKey(k Key) {
	if s.state == StateIdle {
		return
	}
	n := len(s.currentLine())
	if n == 0 {
		return
	}
	cur := s.displayIndex()
	switch k {
	case KeyLeft:
		cur--
	case KeyRight:
		cur++
	default:
		return
	}
	if cur < 0 {
		cur = 0
	}
	if cur > n {
		cur = n
	}
	s.GoToHistoryIndex(cur)
}

func (s *Sequencer) displayIndex() int {
	switch {
	case s.state == StateScrubbing:
		return s.historyIndex
	case s.state == StateAuthoring:
		return len(s.authored)
	default:
		return s.ply
	}
}

func (s *Sequencer) currentLine() []string {
	if s.resumeMode() == StateAuthoring {
		return s.authored
	}
	return s.line
}

func (s *Sequencer) resumeMode() State {
	if s.state == StateScrubbing {
		return s.resumeTo
	}
	return s.state
}

// PlayedMoves is the SAN history of the live position.
func (s *Sequencer) PlayedMoves() []string {
	if s.resumeMode() == StateAuthoring {
		return append([]string(nil), s.authored...)
	}
	if s.live == nil {
		return nil
	}
	return s.live.History()
}

func (s *Sequencer) Snapshot() Snapshot {
	snap := Snapshot{
		State:         s.state,
		ExerciseID:    s.ex.ID,
		Orientation:   s.ex.Color,
		LiveMoveIndex: s.ply,
		HistoryIndex:  -1,
		LineLength:    len(s.currentLine()),
		Played:        s.PlayedMoves(),
		Mistakes:      append([]int(nil), s.mistakes...),
		Highlight:     s.highlight,
		AwaitingReply: s.awaiting,
		Completed:     s.completed,
		Diverged:      s.diverged,
	}
	if s.resumeMode() == StateAuthoring {
		snap.LiveMoveIndex = len(s.authored)
	}
	snap.CurrentMoveIndex = s.displayIndex()
	pos := s.live
	if s.state == StateScrubbing {
		pos = s.view
		snap.Scrubbing = true
		snap.HistoryIndex = s.historyIndex
	}
	if pos != nil {
		snap.FEN = s.oracle.BoardToNotation(pos)
		snap.Turn = pos.Turn()
	}
	return snap
}

// LegalMoves are the moves the trainee may try on the displayed board: none
// while scrubbing, waiting for a reply or after the line ended.
func (s *Sequencer) LegalMoves() []oracle.LegalMove {
	switch s.state {
	case StateAuthoring:
		return s.oracle.LegalMoves(s.live)
	case StateTraining:
		if s.completed || s.awaiting || s.ply >= len(s.line) || s.capReached() {
			return nil
		}
		return s.oracle.LegalMoves(s.live)
	default:
		return nil
	}
}

// Stop cancels an owed opponent reply without clearing the session.
func (s *Sequencer) Stop() {
	if s.cancelReply != nil {
		s.cancelReply()
		s.cancelReply = nil
	}
	s.generation++
	s.awaiting = false
}

// reset cancels any owed reply and clears all session state.
func (s *Sequencer) reset() {
	if s.cancelReply != nil {
		s.cancelReply()
		s.cancelReply = nil
	}
	s.generation++
	s.state = StateIdle
	s.resumeTo = ""
	s.ex = exercise.Exercise{}
	s.line = nil
	s.start = nil
	s.live = nil
	s.ply = 0
	s.view = nil
	s.historyIndex = -1
	s.mistakes = nil
	s.highlight = HighlightNone
	s.completed = false
	s.diverged = false
	s.awaiting = false
	s.authored = nil
}

func (s *Sequencer) emit(e Event) {
	if s.opts.Listener == nil {
		return
	}
	e.ExerciseID = s.ex.ID
	s.opts.Listener.OnEvent(e)
}
