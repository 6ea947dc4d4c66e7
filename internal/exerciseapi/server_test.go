package exerciseapi

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-trainer/internal/remote"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

func newTestClient(t *testing.T, repo Repository) *remote.Client {
	t.Helper()
	srv := NewServer(repo, map[string]string{"tok-a": "alice", "tok-b": "bob"}, nil)
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, srv.Handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	hc := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return remote.NewClient("http://exercise-api", remote.WithHTTPClient(hc), remote.WithRetry(1))
}

func sample(name string, public bool) trainerdto.ExerciseResource {
	return trainerdto.ExerciseResource{
		Name:       name,
		InitialFEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		PGN:        "1. e4 e5 2. Nf3 Nc6",
		Color:      "white",
		IsPublic:   public,
	}
}

func TestServer_CreateListMinePublic(t *testing.T) {
	c := newTestClient(t, NewMemoryRepository())
	ctx := context.Background()

	a, err := c.Create(ctx, "tok-a", sample("alice private", false))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == 0 || a.CreatedAt.IsZero() {
		t.Fatalf("server must assign id and createdAt: %+v", a)
	}
	if _, err := c.Create(ctx, "tok-b", sample("bob public", true)); err != nil {
		t.Fatalf("Create bob: %v", err)
	}

	mine, err := c.ListMine(ctx, "tok-a")
	if err != nil || len(mine) != 1 || mine[0].Name != "alice private" {
		t.Fatalf("ListMine = %+v, %v", mine, err)
	}
	pub, err := c.ListPublic(ctx, "")
	if err != nil || len(pub) != 1 || pub[0].Name != "bob public" {
		t.Fatalf("ListPublic = %+v, %v", pub, err)
	}
}

func TestServer_OwnerScopedWrites(t *testing.T) {
	c := newTestClient(t, NewMemoryRepository())
	ctx := context.Background()

	a, err := c.Create(ctx, "tok-a", sample("mine", false))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	a.Name = "renamed"
	if _, err := c.Update(ctx, "tok-b", *a); !remote.IsNotFound(err) {
		t.Fatalf("foreign update must 404, got %v", err)
	}
	upd, err := c.Update(ctx, "tok-a", *a)
	if err != nil || upd.Name != "renamed" {
		t.Fatalf("Update = %+v, %v", upd, err)
	}
	if err := c.Delete(ctx, "tok-b", a.ID); !remote.IsNotFound(err) {
		t.Fatalf("foreign delete must 404, got %v", err)
	}
	if err := c.Delete(ctx, "tok-a", a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestServer_RejectsBadInput(t *testing.T) {
	c := newTestClient(t, NewMemoryRepository())
	ctx := context.Background()

	if _, err := c.Create(ctx, "unknown", sample("x", false)); err == nil {
		t.Fatalf("unknown token must be rejected")
	} else {
		var se *remote.StatusError
		if !errors.As(err, &se) || se.Status != fasthttp.StatusUnauthorized {
			t.Fatalf("expected 401, got %v", err)
		}
	}
	bad := sample("x", false)
	bad.Color = "green"
	if _, err := c.Create(ctx, "tok-a", bad); err == nil {
		t.Fatalf("invalid color must be rejected")
	}
}
