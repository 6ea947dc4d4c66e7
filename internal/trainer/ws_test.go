package trainer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

// frame decodes either a reply or an event.
type frame struct {
	Type      string                       `json:"type"`
	Seq       int64                        `json:"seq"`
	OK        bool                         `json:"ok"`
	Kind      string                       `json:"kind"`
	State     *trainerdto.BoardState       `json:"state"`
	Exercise  *trainerdto.ExerciseSummary  `json:"exercise"`
	Exercises []trainerdto.ExerciseSummary `json:"exercises"`
}

func dial(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	deps, _ := testDeps(t)
	srv := httptest.NewServer(NewHandler(deps, Options{ReplyDelay: time.Millisecond}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?device=ws-dev"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer tok"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

func TestHandler_RoundTrip(t *testing.T) {
	conn, ctx := dial(t)

	if err := wsjson.Write(ctx, conn, trainerdto.Command{Type: trainerdto.CmdList, Seq: 7}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := readUntil(t, ctx, conn, func(f frame) bool { return f.Type == "reply" && f.Seq == 7 })
	if !f.OK || len(f.Exercises) == 0 {
		t.Fatalf("list frame = %+v", f)
	}

	_ = wsjson.Write(ctx, conn, trainerdto.Command{Type: trainerdto.CmdLoad, Seq: 8, ExerciseID: "italian-1"})
	f = readUntil(t, ctx, conn, func(f frame) bool { return f.Type == "reply" && f.Seq == 8 })
	if !f.OK || f.Exercise == nil || f.Exercise.ID != "italian-1" {
		t.Fatalf("load frame = %+v", f)
	}

	_ = wsjson.Write(ctx, conn, trainerdto.Command{Type: trainerdto.CmdMove, Seq: 9, From: "e2", To: "e4"})
	f = readUntil(t, ctx, conn, func(f frame) bool { return f.Type == "event" && f.Kind == "opponent_replied" })
	if f.State == nil || f.State.LiveMoveIndex != 2 || f.State.Turn != "white" {
		t.Fatalf("reply event = %+v", f.State)
	}
}

func TestBearer(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
	}
	for in, want := range cases {
		if got := bearer(in); got != want {
			t.Fatalf("bearer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClient_DrivesRemoteSession(t *testing.T) {
	deps, st := testDeps(t)
	srv := httptest.NewServer(NewHandler(deps, Options{ReplyDelay: time.Millisecond}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "client dev", "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	replies := make(chan trainerdto.Event, 16)
	c.OnEvent(func(ev trainerdto.Event) {
		if ev.Kind == "opponent_replied" {
			replies <- ev
		}
	})

	rep, err := c.Do(ctx, trainerdto.Command{Type: trainerdto.CmdLoad, ExerciseID: "sicilian-2"})
	if err != nil || !rep.OK || rep.Seq != 1 {
		t.Fatalf("load = %+v, %v", rep, err)
	}
	if rep.State.LiveMoveIndex != 1 || rep.State.Turn != "black" {
		t.Fatalf("black trainee should face 1. e4: %+v", rep.State)
	}
	rep, err = c.Do(ctx, trainerdto.Command{Type: trainerdto.CmdMove, From: "c7", To: "c5"})
	if err != nil || !rep.OK || rep.Seq != 2 {
		t.Fatalf("move = %+v, %v", rep, err)
	}
	select {
	case ev := <-replies:
		if ev.State.LiveMoveIndex != 3 {
			t.Fatalf("after reply = %+v", ev.State)
		}
	case <-ctx.Done():
		t.Fatalf("no opponent reply")
	}

	got, _ := st.Get(ctx, "client dev", "sicilian-2")
	if got.Attempts != 1 {
		t.Fatalf("device from query not used: %+v", got)
	}
}
