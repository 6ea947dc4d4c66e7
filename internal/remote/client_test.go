package remote

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

func serve(t *testing.T, h fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, h) }()
	t.Cleanup(func() { _ = ln.Close() })
	hc := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	return NewClient("http://remote/", WithHTTPClient(hc))
}

func TestClient_CredentialRequiredWithoutNetwork(t *testing.T) {
	var hits int32
	c := serve(t, func(ctx *fasthttp.RequestCtx) { atomic.AddInt32(&hits, 1) })
	bg := context.Background()
	if _, err := c.ListMine(bg, ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("ListMine: %v", err)
	}
	if err := c.Delete(bg, " ", 1); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Delete: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("no request expected, got %d", hits)
	}
}

func TestClient_RetriesGetOn5xx(t *testing.T) {
	var hits int32
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		if got := string(ctx.Request.Header.Peek("Authorization")); got != "Bearer tok" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		if atomic.AddInt32(&hits, 1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`[{"id":7,"name":"n","initialFen":"","pgn":"1. e4","color":"white","isPublic":true,"createdAt":"2026-01-01T00:00:00Z"}]`)
	})
	out, err := c.ListMine(context.Background(), "tok")
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(out) != 1 || out[0].ID != 7 || atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("out=%+v hits=%d", out, hits)
	}
}

func TestClient_NoRetryOnCreate(t *testing.T) {
	var hits int32
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(&hits, 1)
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
		ctx.SetBodyString("upstream down")
	})
	_, err := c.Create(context.Background(), "tok", trainerdtoSample())
	var se *StatusError
	if !errors.As(err, &se) || se.Status != fasthttp.StatusBadGateway || se.Body != "upstream down" {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("POST must not be retried, hits=%d", hits)
	}
}

func TestClient_UpdateAndMissingDelete(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case ctx.IsPut() && path == "/api/exercises/7":
			ctx.SetContentType("application/json")
			ctx.SetBody(ctx.PostBody())
		case ctx.IsDelete():
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		default:
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
		}
	})
	ex := trainerdtoSample()
	ex.ID = 7
	ex.Name = "renamed"
	out, err := c.Update(context.Background(), "tok", ex)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.ID != 7 || out.Name != "renamed" {
		t.Fatalf("out = %+v", out)
	}
	err = c.Delete(context.Background(), "tok", 9)
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if IsNotFound(errors.New("other")) {
		t.Fatalf("plain error is not a 404")
	}
}

func TestClient_Timeout(t *testing.T) {
	if got := NewClient("http://remote", WithTimeout(3*time.Second)).Timeout(); got != 3*time.Second {
		t.Fatalf("timeout = %v", got)
	}
	if got := NewClient("http://remote", WithTimeout(0)).Timeout(); got <= 0 {
		t.Fatalf("zero option should keep the default, got %v", got)
	}
}

func trainerdtoSample() trainerdto.ExerciseResource {
	return trainerdto.ExerciseResource{Name: "x", PGN: "1. e4", Color: "white"}
}
