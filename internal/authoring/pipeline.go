// Package authoring validates pasted notation and stores it as a custom
// exercise, locally first and then mirrored to the remote service.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/exercise"
	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/notation"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/internal/remote"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

type Code string

const (
	CodeFormat   Code = "format"
	CodeNotation Code = "notation"
)

// ValidationError is returned for input the author has to fix. Nothing is
// stored when it is returned.
type ValidationError struct {
	Code    Code
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Mirror is the write side of the remote persistence client.
type Mirror interface {
	Create(ctx context.Context, credential string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error)
	Update(ctx context.Context, credential string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error)
}

type Request struct {
	Device     string
	Credential string
	Raw        string
	Name       string
	Color      exercise.Color
	Public     bool
}

type PromoteRequest struct {
	Device     string
	Credential string
	Moves      []string
	Name       string
	Color      exercise.Color
	Public     bool
}

type Pipeline struct {
	oracle  oracle.Oracle
	local   localstore.Store
	remote  Mirror
	norm    *exercise.Normalizer
	catalog *msgcat.Catalog
	logger  *zap.Logger
	timeout time.Duration

	now   func() time.Time
	newID func() string
}

type Option func(*Pipeline)

// WithMirrorTimeout bounds each remote create.
func WithMirrorTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline. remote may be nil for local-only operation.
func New(o oracle.Oracle, local localstore.Store, remote Mirror, catalog *msgcat.Catalog, opts ...Option) *Pipeline {
	p := &Pipeline{
		oracle:  o,
		local:   local,
		remote:  remote,
		catalog: catalog,
		logger:  zap.NewNop(),
		timeout: 5 * time.Second,
		now:     time.Now,
		newID:   func() string { return "custom-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.norm = exercise.NewNormalizer(o, p.logger)
	return p
}

// Submit validates req.Raw, writes a local record and mirrors it when the
// author is signed in. Mirror failures are logged, never returned.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*exercise.Exercise, error) {
	rec, err := p.save(ctx, req)
	if err != nil {
		return nil, err
	}
	if rec.Mirror == localstore.MirrorPending {
		rec = p.mirror(ctx, req.Device, req.Credential, rec)
	}
	ex := p.norm.FromLocal(rec)
	return &ex, nil
}

// Save is Submit without the remote step: a record that owes a mirror is
// left pending for RetryPending.
func (p *Pipeline) Save(ctx context.Context, req Request) (*exercise.Exercise, error) {
	rec, err := p.save(ctx, req)
	if err != nil {
		return nil, err
	}
	ex := p.norm.FromLocal(rec)
	return &ex, nil
}

// Promote re-serializes a played move list and submits it.
func (p *Pipeline) Promote(ctx context.Context, req PromoteRequest) (*exercise.Exercise, error) {
	sub, err := p.promoted(req)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, sub)
}

// SavePromotion is Promote without the remote step.
func (p *Pipeline) SavePromotion(ctx context.Context, req PromoteRequest) (*exercise.Exercise, error) {
	sub, err := p.promoted(req)
	if err != nil {
		return nil, err
	}
	return p.Save(ctx, sub)
}

// MirrorOwed reports whether records saved with credential are mirrored.
func (p *Pipeline) MirrorOwed(credential string) bool {
	return p.remote != nil && strings.TrimSpace(credential) != ""
}

func (p *Pipeline) promoted(req PromoteRequest) (Request, error) {
	if len(req.Moves) == 0 {
		return Request{}, &ValidationError{Code: CodeNotation, Message: p.catalog.Text("authoring.empty", nil), Err: oracle.ErrEmptyNotation}
	}
	return Request{
		Device:     req.Device,
		Credential: req.Credential,
		Raw:        notation.Serialize(req.Moves),
		Name:       req.Name,
		Color:      req.Color,
		Public:     req.Public,
	}, nil
}

func (p *Pipeline) save(ctx context.Context, req Request) (localstore.Record, error) {
	raw := strings.TrimSpace(req.Raw)
	if !notation.HasLeadingMoveNumber(raw) {
		return localstore.Record{}, &ValidationError{Code: CodeFormat, Message: p.catalog.Text("authoring.format", nil)}
	}
	_, sans, err := p.oracle.LoadNotationSequence(oracle.StartFEN, raw)
	if err != nil {
		msg := p.catalog.Text("authoring.notation", map[string]string{"Detail": err.Error()})
		if errors.Is(err, oracle.ErrEmptyNotation) {
			msg = p.catalog.Text("authoring.empty", nil)
		}
		return localstore.Record{}, &ValidationError{Code: CodeNotation, Message: msg, Err: err}
	}

	color := exercise.ParseColor(string(req.Color))
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = notation.DisplayName(string(color), sans)
	}
	rec := localstore.Record{
		ID:         p.newID(),
		Name:       name,
		InitialFEN: oracle.StartFEN,
		PGN:        notation.Serialize(sans),
		Color:      string(color),
		CreatedAt:  p.now().UTC(),
		IsPublic:   req.Public,
		Mirror:     localstore.MirrorLocal,
	}
	if p.MirrorOwed(req.Credential) {
		rec.Mirror = localstore.MirrorPending
	}
	if err := p.local.Append(ctx, req.Device, rec); err != nil {
		return localstore.Record{}, err
	}
	p.logger.Info("exercise_saved",
		zap.String("exercise_id", rec.ID),
		zap.String("device", req.Device),
		zap.Int("plies", len(sans)),
		zap.String("mirror", string(rec.Mirror)),
	)
	return rec, nil
}

// Rename renames a local exercise and, when it was mirrored, its remote copy.
// A remote failure is returned after the local rename took effect.
func (p *Pipeline) Rename(ctx context.Context, device, credential, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Code: CodeFormat, Message: p.catalog.Text("authoring.name", nil)}
	}
	if err := p.local.Rename(ctx, device, id, name); err != nil {
		return err
	}
	recs, err := p.local.List(ctx, device)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.ID != id {
			continue
		}
		if rec.Mirror != localstore.MirrorMirrored || rec.BackendID == "" || !p.MirrorOwed(credential) {
			return nil
		}
		backendID, err := strconv.ParseInt(rec.BackendID, 10, 64)
		if err != nil {
			return fmt.Errorf("backend id %q: %w", rec.BackendID, err)
		}
		res := resource(rec)
		res.ID = backendID
		cctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if _, err := p.remote.Update(cctx, credential, res); err != nil {
			p.logger.Warn("remote_rename_failed", zap.String("exercise_id", id), zap.Int64("backend_id", backendID), zap.Error(err))
			return fmt.Errorf("remote rename: %w", err)
		}
		p.logger.Info("exercise_renamed", zap.String("exercise_id", id), zap.Int64("backend_id", backendID))
		return nil
	}
	return localstore.ErrRecordNotFound
}

// RetryPending mirrors every record still owed to the remote service and
// returns how many made it.
func (p *Pipeline) RetryPending(ctx context.Context, device, credential string) (int, error) {
	if p.remote == nil {
		return 0, nil
	}
	if strings.TrimSpace(credential) == "" {
		return 0, remote.ErrNotAuthenticated
	}
	recs, err := p.local.List(ctx, device)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, rec := range localstore.Pending(recs) {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if got := p.mirror(ctx, device, credential, rec); got.Mirror == localstore.MirrorMirrored {
			done++
		}
	}
	return done, nil
}

func (p *Pipeline) mirror(ctx context.Context, device, credential string, rec localstore.Record) localstore.Record {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	created, err := p.remote.Create(cctx, credential, resource(rec))
	if err != nil {
		p.logger.Warn("mirror_failed", zap.String("exercise_id", rec.ID), zap.Error(err))
		return rec
	}
	backendID := strconv.FormatInt(created.ID, 10)
	if err := p.local.MarkMirrored(ctx, device, rec.ID, backendID); err != nil {
		p.logger.Warn("mirror_mark_failed", zap.String("exercise_id", rec.ID), zap.String("backend_id", backendID), zap.Error(err))
		return rec
	}
	p.logger.Info("exercise_mirrored", zap.String("exercise_id", rec.ID), zap.String("backend_id", backendID))
	rec.BackendID = backendID
	rec.Mirror = localstore.MirrorMirrored
	return rec
}

func resource(rec localstore.Record) trainerdto.ExerciseResource {
	sans := notation.Normalize(rec.PGN, 0)
	analysis := make([]trainerdto.Annotation, len(sans))
	for i, san := range sans {
		analysis[i] = trainerdto.Annotation{Move: san}
	}
	return trainerdto.ExerciseResource{
		Name:       rec.Name,
		InitialFEN: rec.InitialFEN,
		PGN:        rec.PGN,
		Analysis:   analysis,
		Color:      rec.Color,
		IsPublic:   rec.IsPublic,
	}
}
