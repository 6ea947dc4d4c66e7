package exerciseapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

const prefix = "/api/exercises"

type Server struct {
	repo   Repository
	tokens map[string]string
	logger *zap.Logger
}

// NewServer resolves bearer tokens to owners through tokens (token -> owner).
func NewServer(repo Repository, tokens map[string]string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokens == nil {
		tokens = map[string]string{}
	}
	return &Server{repo: repo, tokens: tokens, logger: logger}
}

func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case path == prefix && method == fasthttp.MethodPost:
		s.create(ctx)
	case path == prefix+"/mine" && method == fasthttp.MethodGet:
		s.listMine(ctx)
	case path == prefix+"/public" && method == fasthttp.MethodGet:
		s.listPublic(ctx)
	case strings.HasPrefix(path, prefix+"/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(path, prefix+"/"), 10, 64)
		if err != nil || id <= 0 {
			writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
			return
		}
		switch method {
		case fasthttp.MethodPut:
			s.update(ctx, id)
		case fasthttp.MethodDelete:
			s.delete(ctx, id)
		default:
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method_not_allowed", method)
		}
	default:
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "unknown route")
	}
}

func (s *Server) owner(ctx *fasthttp.RequestCtx) (string, bool) {
	auth := strings.TrimSpace(string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", false
	}
	owner, ok := s.tokens[strings.TrimSpace(token)]
	return owner, ok
}

func (s *Server) requireOwner(ctx *fasthttp.RequestCtx) (string, bool) {
	owner, ok := s.owner(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, "unauthorized", "bearer token required")
	}
	return owner, ok
}

func (s *Server) create(ctx *fasthttp.RequestCtx) {
	owner, ok := s.requireOwner(ctx)
	if !ok {
		return
	}
	in, ok := decodeExercise(ctx)
	if !ok {
		return
	}
	out, err := s.repo.Create(ctx, owner, in)
	if err != nil {
		s.internal(ctx, "exercise_create_failed", err)
		return
	}
	s.logger.Info("exercise_created", zap.Int64("id", out.ID), zap.String("owner", owner), zap.Bool("public", out.IsPublic))
	writeJSON(ctx, fasthttp.StatusCreated, out)
}

func (s *Server) listMine(ctx *fasthttp.RequestCtx) {
	owner, ok := s.requireOwner(ctx)
	if !ok {
		return
	}
	out, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		s.internal(ctx, "exercise_list_failed", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) listPublic(ctx *fasthttp.RequestCtx) {
	out, err := s.repo.ListPublic(ctx)
	if err != nil {
		s.internal(ctx, "exercise_list_failed", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) update(ctx *fasthttp.RequestCtx, id int64) {
	owner, ok := s.requireOwner(ctx)
	if !ok {
		return
	}
	in, ok := decodeExercise(ctx)
	if !ok {
		return
	}
	in.ID = id
	out, err := s.repo.Update(ctx, owner, in)
	if errors.Is(err, ErrNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "exercise not found")
		return
	}
	if err != nil {
		s.internal(ctx, "exercise_update_failed", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, out)
}

func (s *Server) delete(ctx *fasthttp.RequestCtx, id int64) {
	owner, ok := s.requireOwner(ctx)
	if !ok {
		return
	}
	err := s.repo.Delete(ctx, owner, id)
	if errors.Is(err, ErrNotFound) {
		writeError(ctx, fasthttp.StatusNotFound, "not_found", "exercise not found")
		return
	}
	if err != nil {
		s.internal(ctx, "exercise_delete_failed", err)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) internal(ctx *fasthttp.RequestCtx, event string, err error) {
	s.logger.Error(event, zap.Error(err))
	writeError(ctx, fasthttp.StatusInternalServerError, "internal", "internal error")
}

func decodeExercise(ctx *fasthttp.RequestCtx) (trainerdto.ExerciseResource, bool) {
	var in trainerdto.ExerciseResource
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "bad_json", err.Error())
		return in, false
	}
	in.Name = strings.TrimSpace(in.Name)
	in.PGN = strings.TrimSpace(in.PGN)
	in.Color = strings.ToLower(strings.TrimSpace(in.Color))
	switch {
	case in.PGN == "":
		writeError(ctx, fasthttp.StatusBadRequest, "invalid", "pgn is required")
		return in, false
	case in.Color != "white" && in.Color != "black":
		writeError(ctx, fasthttp.StatusBadRequest, "invalid", "color must be white or black")
		return in, false
	}
	return in, true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(b)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	writeJSON(ctx, status, trainerdto.Error{Code: code, Message: msg})
}
