// Package trainer runs one training session per connected client. A Session
// owns a Sequencer and the merged exercise list and mutates them only from
// its Run goroutine; commands, reply timers and refresh ticks all arrive
// there over channels.
package trainer

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/authoring"
	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/obslog"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/internal/sequencer"
	"github.com/park285/cheese-trainer/internal/stats"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

var ErrSessionClosed = errors.New("trainer: session closed")

// Error codes carried in trainerdto.Error.
const (
	CodeNotFound       = "not_found"
	CodeBadRequest     = "bad_request"
	CodeUnknownCommand = "unknown_command"
	CodeInternal       = "internal"
)

// Deps are shared by every session of a process.
type Deps struct {
	Oracle    oracle.Oracle
	Merger    *exercise.Merger
	Authoring *authoring.Pipeline
	Stats     stats.Store
	Catalog   *msgcat.Catalog
	Logger    *zap.Logger
}

type Options struct {
	AutoPlayFullMoves int
	ReplyDelay        time.Duration
	// RefreshInterval re-merges the exercise list while the session runs.
	// Zero disables the periodic refresh.
	RefreshInterval time.Duration
	// RandomMode jumps to another random exercise after a wrong move.
	RandomMode bool
	// Intn picks random exercises; defaults to math/rand.
	Intn func(int) int
	Now  func() time.Time
}

type envelope struct {
	ctx   context.Context
	cmd   trainerdto.Command
	reply chan trainerdto.Reply
}

type Session struct {
	device     string
	credential string
	deps       Deps
	opts       Options
	logger     *zap.Logger

	seq *sequencer.Sequencer
	// exercises is base combined with the last remote fetch.
	exercises []exercise.Exercise
	base      []exercise.Exercise
	remotes   []exercise.Exercise

	// ctx is the Run context; background fetches and mirrors use it.
	ctx         context.Context
	fetching    bool
	mirroring   bool
	mirrorAgain bool

	cmds   chan envelope
	tasks  chan func()
	events chan trainerdto.Event

	done      chan struct{}
	closeOnce sync.Once

	// sequencer events raised by the current command or task
	pending []sequencer.Event
}

func New(device, credential string, deps Deps, opts Options) *Session {
	if opts.Intn == nil {
		opts.Intn = rand.Intn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Catalog == nil {
		deps.Catalog = msgcat.MustDefault()
	}
	s := &Session{
		device:     strings.TrimSpace(device),
		credential: strings.TrimSpace(credential),
		deps:       deps,
		opts:       opts,
		logger:     obslog.Or(deps.Logger).With(zap.String("device", device)),
		cmds:       make(chan envelope),
		tasks:      make(chan func(), 8),
		events:     make(chan trainerdto.Event, 64),
		done:       make(chan struct{}),
		ctx:        context.Background(),
	}
	s.seq = sequencer.New(deps.Oracle, loopScheduler{s: s}, sequencer.Options{
		AutoPlayFullMoves: opts.AutoPlayFullMoves,
		ReplyDelay:        opts.ReplyDelay,
		Listener:          sequencer.ListenerFunc(s.onEvent),
		Logger:            s.logger,
	})
	return s
}

// Events carries asynchronous notifications, including opponent replies
// that land after the command that triggered them was answered.
func (s *Session) Events() <-chan trainerdto.Event { return s.events }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run loads the exercise list and serves commands until ctx ends. Remote
// fetches and mirrors run in the background and land as loop tasks. Pending
// reply timers and the refresh ticker stop with Run.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer func() {
		s.seq.Stop()
		s.closeOnce.Do(func() { close(s.done) })
	}()

	s.refresh()

	var tick <-chan time.Time
	if s.opts.RefreshInterval > 0 {
		t := time.NewTicker(s.opts.RefreshInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session_stopped")
			return ctx.Err()
		case env := <-s.cmds:
			rep := s.handle(env.ctx, env.cmd)
			s.flush()
			rep.Type = "reply"
			rep.Seq = env.cmd.Seq
			env.reply <- rep
		case fn := <-s.tasks:
			fn()
			s.flush()
		case <-tick:
			s.refresh()
		}
	}
}

// Do hands cmd to the Run loop and waits for its reply.
func (s *Session) Do(ctx context.Context, cmd trainerdto.Command) (trainerdto.Reply, error) {
	env := envelope{ctx: ctx, cmd: cmd, reply: make(chan trainerdto.Reply, 1)}
	select {
	case s.cmds <- env:
	case <-s.done:
		return trainerdto.Reply{}, ErrSessionClosed
	case <-ctx.Done():
		return trainerdto.Reply{}, ctx.Err()
	}
	select {
	case rep := <-env.reply:
		return rep, nil
	case <-s.done:
		return trainerdto.Reply{}, ErrSessionClosed
	}
}

// refresh re-reads the dataset and local store on the loop and starts a
// remote fetch in the background.
func (s *Session) refresh() {
	s.refreshBase()
	s.fetchRemote()
}

func (s *Session) refreshBase() {
	if s.deps.Merger == nil {
		return
	}
	base, err := s.deps.Merger.Base(s.ctx, s.device)
	if err != nil {
		s.logger.Error("session_refresh_failed", zap.Error(err))
		return
	}
	s.base = base
	s.exercises = s.deps.Merger.Combine(s.base, s.remotes)
}

// fetchRemote lists remote exercises off the loop. At most one fetch runs
// at a time; ticks that arrive meanwhile are skipped.
func (s *Session) fetchRemote() {
	if !s.deps.Merger.HasRemote() || s.fetching {
		return
	}
	s.fetching = true
	ctx, credential := s.ctx, s.credential
	go func() {
		remotes := s.deps.Merger.Remote(ctx, credential)
		s.post(func() {
			s.fetching = false
			if ctx.Err() != nil {
				return
			}
			changed := !sameIDs(s.remotes, remotes)
			s.remotes = remotes
			s.exercises = s.deps.Merger.Combine(s.base, s.remotes)
			if changed {
				s.publishState(trainerdto.EventExercisesUpdated, "")
			}
		})
	}()
}

// mirrorPending pushes owed local records to the remote service off the
// loop. A save made while a mirror runs queues one more pass.
func (s *Session) mirrorPending() {
	if s.deps.Authoring == nil || !s.deps.Authoring.MirrorOwed(s.credential) {
		return
	}
	if s.mirroring {
		s.mirrorAgain = true
		return
	}
	s.mirroring = true
	ctx, device, credential := s.ctx, s.device, s.credential
	go func() {
		n, err := s.deps.Authoring.RetryPending(ctx, device, credential)
		s.post(func() {
			s.mirroring = false
			if err != nil {
				s.logger.Warn("session_mirror_failed", zap.Error(err))
			}
			if n > 0 {
				s.refreshBase()
				s.fetchRemote()
				s.publishState(trainerdto.EventExerciseMirrored, "")
			}
			if s.mirrorAgain {
				s.mirrorAgain = false
				s.mirrorPending()
			}
		})
	}()
}

func sameIDs(a, b []exercise.Exercise) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// post queues fn onto the Run loop. It is dropped once the loop has ended.
// 백그라운드 결과는 반드시 이 경로로 루프에 반영한다.
func (s *Session) post(fn func()) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

func (s *Session) onEvent(e sequencer.Event) { s.pending = append(s.pending, e) }

// flush publishes the pending sequencer events with the board state they
// left behind and updates the stats store.
func (s *Session) flush() {
	if len(s.pending) == 0 {
		return
	}
	evs := s.pending
	s.pending = nil
	st := s.boardState()
	for _, e := range evs {
		var msg string
		switch e.Kind {
		case sequencer.EventMoveAccepted:
			msg = s.deps.Catalog.Text("trainer.correct", nil)
		case sequencer.EventMismatch:
			msg = s.deps.Catalog.Text("trainer.wrong", nil)
			s.record(e.ExerciseID, stats.Delta{Mistakes: 1})
		case sequencer.EventMoveRejected:
			msg = s.deps.Catalog.Text("trainer.illegal", nil)
		case sequencer.EventCompleted:
			if e.Diverged {
				msg = s.deps.Catalog.Text("trainer.diverged", nil)
			} else {
				msg = s.deps.Catalog.Text("trainer.completed", map[string]int{"Mistakes": e.Mistakes})
			}
			s.record(e.ExerciseID, stats.Delta{Completions: 1, At: s.opts.Now()})
		}
		state := st
		s.publish(trainerdto.Event{Type: "event", Kind: string(e.Kind), Message: msg, State: &state})
	}
}

// publishState raises an event that carries no sequencer change.
func (s *Session) publishState(kind, msg string) {
	st := s.boardState()
	s.publish(trainerdto.Event{Type: "event", Kind: kind, Message: msg, State: &st})
}

func (s *Session) publish(ev trainerdto.Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("session_event_dropped", zap.String("kind", ev.Kind))
	}
}

func (s *Session) record(exerciseID string, d stats.Delta) {
	if s.deps.Stats == nil || exerciseID == "" || s.device == "" {
		return
	}
	if err := s.deps.Stats.Record(context.Background(), s.device, exerciseID, d); err != nil {
		s.logger.Warn("stats_record_failed", zap.String("exercise_id", exerciseID), zap.Error(err))
	}
}

func (s *Session) boardState() trainerdto.BoardState {
	snap := s.seq.Snapshot()
	return trainerdto.BoardState{
		Mode:             string(snap.State),
		ExerciseID:       snap.ExerciseID,
		FEN:              snap.FEN,
		Turn:             snap.Turn,
		CurrentMoveIndex: snap.CurrentMoveIndex,
		LiveMoveIndex:    snap.LiveMoveIndex,
		Played:           snap.Played,
		Mistakes:         snap.Mistakes,
		Highlight:        string(snap.Highlight),
		AwaitingReply:    snap.AwaitingReply,
		Completed:        snap.Completed,
		Diverged:         snap.Diverged,
		Legal:            legalMoves(s.seq.LegalMoves()),
	}
}

func legalMoves(moves []oracle.LegalMove) []trainerdto.LegalMove {
	if len(moves) == 0 {
		return nil
	}
	out := make([]trainerdto.LegalMove, len(moves))
	for i, m := range moves {
		out[i] = trainerdto.LegalMove{From: m.From, To: m.To, SAN: m.Notation, Promotion: m.Promotion}
	}
	return out
}

// loopScheduler runs sequencer callbacks on the session goroutine.
type loopScheduler struct{ s *Session }

func (l loopScheduler) AfterFunc(d time.Duration, fn func()) sequencer.Cancel {
	t := time.AfterFunc(d, func() { l.s.post(fn) })
	return func() { t.Stop() }
}
