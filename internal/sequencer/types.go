package sequencer

import (
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/exercise"
)

type State string

const (
	StateIdle      State = "idle"
	StateTraining  State = "training"
	StateScrubbing State = "scrubbing"
	StateAuthoring State = "authoring"
)

// Highlight is the transient board cue left by the last move attempt.
type Highlight string

const (
	HighlightNone    Highlight = "none"
	HighlightSuccess Highlight = "success"
	HighlightFailure Highlight = "failure"
)

type Key int

const (
	KeyLeft Key = iota + 1
	KeyRight
)

// Cancel stops a scheduled callback. Calling it after the callback ran is a
// no-op.
type Cancel func()

// Scheduler runs fn after d. Implementations must invoke fn on the same
// goroutine that drives the Sequencer.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Cancel
}

type EventKind string

const (
	EventMoveAccepted    EventKind = "move_accepted"
	EventMoveRejected    EventKind = "move_rejected"
	EventOpponentReplied EventKind = "opponent_replied"
	EventCompleted       EventKind = "completed"
	EventMismatch        EventKind = "mismatch"
)

type Event struct {
	Kind       EventKind
	ExerciseID string
	// Ply is the line index the event refers to.
	Ply      int
	Move     string
	Expected string
	Mistakes int
	Diverged bool
}

type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

type Options struct {
	// AutoPlayFullMoves opening move pairs are played for the trainee on load.
	AutoPlayFullMoves int
	ReplyDelay        time.Duration
	Listener          Listener
	Logger            *zap.Logger
}

type Snapshot struct {
	State       State
	ExerciseID  string
	Orientation exercise.Color
	FEN         string
	Turn        string
	// CurrentMoveIndex is the displayed ply; it equals HistoryIndex while
	// scrubbing and LiveMoveIndex otherwise.
	CurrentMoveIndex int
	LiveMoveIndex    int
	HistoryIndex     int
	Scrubbing        bool
	LineLength       int
	Played           []string
	Mistakes         []int
	Highlight        Highlight
	AwaitingReply    bool
	Completed        bool
	Diverged         bool
}
