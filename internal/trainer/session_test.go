package trainer

import (
	"context"
	"testing"
	"time"

	"github.com/park285/cheese-trainer/internal/authoring"
	"github.com/park285/cheese-trainer/internal/dataset"
	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/internal/stats"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

func testDeps(t *testing.T) (Deps, *stats.Memory) {
	t.Helper()
	o := oracle.New()
	local := localstore.NewMemory()
	cat := msgcat.MustDefault()
	st := stats.NewMemory()
	merger := exercise.NewMerger(dataset.NewStore(""), local, nil, exercise.NewNormalizer(o, nil), nil)
	return Deps{
		Oracle:    o,
		Merger:    merger,
		Authoring: authoring.New(o, local, nil, cat),
		Stats:     st,
		Catalog:   cat,
	}, st
}

func startSession(t *testing.T, opts Options) (*Session, *stats.Memory) {
	t.Helper()
	deps, st := testDeps(t)
	if opts.ReplyDelay == 0 {
		opts.ReplyDelay = time.Millisecond
	}
	s := New("dev-1", "", deps, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return s, st
}

func do(t *testing.T, s *Session, cmd trainerdto.Command) trainerdto.Reply {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rep, err := s.Do(ctx, cmd)
	if err != nil {
		t.Fatalf("Do(%s): %v", cmd.Type, err)
	}
	if rep.Type != "reply" || rep.Seq != cmd.Seq {
		t.Fatalf("reply envelope = %+v", rep)
	}
	return rep
}

func waitEvent(t *testing.T, s *Session, kind string) trainerdto.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestSession_ListSearchAndSort(t *testing.T) {
	s, _ := startSession(t, Options{})

	rep := do(t, s, trainerdto.Command{Type: trainerdto.CmdList, Seq: 1})
	if !rep.OK || len(rep.Exercises) != 8 {
		t.Fatalf("list = %d exercises, ok=%v", len(rep.Exercises), rep.OK)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdList, Seq: 2, Search: "ruy"})
	ids := make([]string, len(rep.Exercises))
	for i, ex := range rep.Exercises {
		ids[i] = ex.ID
	}
	if len(ids) != 3 || ids[0] != "ruy-lopez-1" || ids[1] != "ruy-lopez-2" || ids[2] != "ruy-lopez-10" {
		t.Fatalf("natural order = %v", ids)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdList, Seq: 3, Color: "black"})
	if len(rep.Exercises) != 2 {
		t.Fatalf("black exercises = %+v", rep.Exercises)
	}
}

func TestSession_PlaysLineWithOpponentReplies(t *testing.T) {
	s, st := startSession(t, Options{})

	rep := do(t, s, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: "ruy-lopez-1"})
	if !rep.OK || rep.State == nil || rep.State.Mode != "training" || rep.State.LiveMoveIndex != 0 {
		t.Fatalf("load reply = %+v", rep)
	}
	if len(rep.State.Legal) != 20 {
		t.Fatalf("legal moves at start = %d", len(rep.State.Legal))
	}

	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdMove, From: "e2", To: "e4"})
	if !rep.OK || !rep.State.AwaitingReply {
		t.Fatalf("move reply = %+v %+v", rep, rep.State)
	}
	if len(rep.State.Legal) != 0 {
		t.Fatalf("no legal moves while the reply is owed, got %d", len(rep.State.Legal))
	}
	if ev := waitEvent(t, s, "move_accepted"); ev.Message != "Correct." {
		t.Fatalf("accepted message = %q", ev.Message)
	}
	ev := waitEvent(t, s, "opponent_replied")
	if ev.State.LiveMoveIndex != 2 || ev.State.AwaitingReply {
		t.Fatalf("state after reply = %+v", ev.State)
	}

	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdMove, From: "d2", To: "d4"})
	if rep.OK {
		t.Fatalf("off-book move must be refused")
	}
	waitEvent(t, s, "mismatch")

	got, _ := st.Get(context.Background(), "dev-1", "ruy-lopez-1")
	if got.Attempts != 1 || got.Mistakes != 1 {
		t.Fatalf("stats = %+v", got)
	}
}

func TestSession_ScrubAndResume(t *testing.T) {
	s, _ := startSession(t, Options{AutoPlayFullMoves: 2})

	rep := do(t, s, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: "queens-gambit-1"})
	if rep.State.LiveMoveIndex != 4 {
		t.Fatalf("auto-played plies = %d", rep.State.LiveMoveIndex)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdKey, Key: "left"})
	if rep.State.Mode != "scrubbing" || rep.State.CurrentMoveIndex != 3 || rep.State.LiveMoveIndex != 4 {
		t.Fatalf("after left = %+v", rep.State)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdGoto, Index: 0})
	if rep.State.FEN != oracle.StartFEN {
		t.Fatalf("goto 0 fen = %q", rep.State.FEN)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdResume})
	if rep.State.Mode != "training" || rep.State.CurrentMoveIndex != 4 {
		t.Fatalf("after resume = %+v", rep.State)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdKey, Key: "up"})
	if rep.OK || rep.Error == nil || rep.Error.Code != CodeBadRequest {
		t.Fatalf("unknown key reply = %+v", rep)
	}
}

func TestSession_RandomModeAdvancesOnMistake(t *testing.T) {
	s, _ := startSession(t, Options{RandomMode: true, Intn: func(int) int { return 0 }})

	do(t, s, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: "ruy-lopez-1"})
	rep := do(t, s, trainerdto.Command{Type: trainerdto.CmdMove, From: "d2", To: "d4"})
	if rep.Exercise == nil || rep.Exercise.ID == "ruy-lopez-1" {
		t.Fatalf("expected a different exercise, got %+v", rep.Exercise)
	}
	if rep.State.ExerciseID != rep.Exercise.ID || len(rep.State.Mistakes) != 0 {
		t.Fatalf("state = %+v", rep.State)
	}

	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdMove, From: "e2", To: "e5"})
	if rep.OK || rep.Exercise != nil {
		t.Fatalf("illegal moves must not advance: %+v", rep)
	}
}

func TestSession_AuthoringSubmitAndPromote(t *testing.T) {
	s, _ := startSession(t, Options{})

	rep := do(t, s, trainerdto.Command{Type: trainerdto.CmdSubmit, PGN: "e4 e5"})
	if rep.OK || rep.Error == nil || rep.Error.Code != string(authoring.CodeFormat) {
		t.Fatalf("format error expected: %+v", rep)
	}

	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdSubmit, PGN: "1. e4 c5 2. Nf3 Nc6", Color: "black", Name: "Open Sicilian"})
	if !rep.OK || rep.Exercise == nil || rep.Exercise.Source != "local" {
		t.Fatalf("submit reply = %+v", rep)
	}
	loaded := do(t, s, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: rep.Exercise.ID})
	if !loaded.OK || loaded.State.LiveMoveIndex != 1 {
		t.Fatalf("load custom = %+v", loaded)
	}

	do(t, s, trainerdto.Command{Type: trainerdto.CmdAuthorStart})
	for _, mv := range [][2]string{{"d2", "d4"}, {"g8", "f6"}, {"c2", "c4"}} {
		rep := do(t, s, trainerdto.Command{Type: trainerdto.CmdMove, From: mv[0], To: mv[1]})
		if !rep.OK {
			t.Fatalf("authoring move %v refused", mv)
		}
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdAuthorUndo})
	if rep.State.Mode != "authoring" || len(rep.State.Played) != 2 {
		t.Fatalf("after undo = %+v", rep.State)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdPromote, Name: "Indian"})
	if !rep.OK || rep.Exercise == nil || rep.Exercise.Plies != 2 {
		t.Fatalf("promote reply = %+v", rep)
	}

	list := do(t, s, trainerdto.Command{Type: trainerdto.CmdList, Source: "local"})
	if len(list.Exercises) != 2 {
		t.Fatalf("local exercises = %+v", list.Exercises)
	}
}

func TestSession_UnknownAndMissing(t *testing.T) {
	s, _ := startSession(t, Options{})

	rep := do(t, s, trainerdto.Command{Type: "dance"})
	if rep.OK || rep.Error.Code != CodeUnknownCommand {
		t.Fatalf("unknown command reply = %+v", rep)
	}
	rep = do(t, s, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: "nope"})
	if rep.OK || rep.Error.Code != CodeNotFound || rep.Message != "Exercise nope was not found." {
		t.Fatalf("not found reply = %+v", rep)
	}
}

func TestSession_DoAfterStop(t *testing.T) {
	deps, _ := testDeps(t)
	s := New("dev", "", deps, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	cancel()
	<-s.Done()
	if _, err := s.Do(context.Background(), trainerdto.Command{Type: trainerdto.CmdList}); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
