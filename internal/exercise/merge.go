package exercise

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/dataset"
	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/notation"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

// datasetTrim is how many trailing plies are ignored when looking for
// duplicates inside the bundled dataset.
const datasetTrim = 2

// RemoteLister is the read side of the remote persistence client.
type RemoteLister interface {
	ListPublic(ctx context.Context, credential string) ([]trainerdto.ExerciseResource, error)
	ListMine(ctx context.Context, credential string) ([]trainerdto.ExerciseResource, error)
}

type Request struct {
	Device     string
	Credential string
}

type Merger struct {
	dataset *dataset.Store
	local   localstore.Store
	remote  RemoteLister
	norm    *Normalizer
	logger  *zap.Logger

	mu   sync.Mutex
	base []Exercise
}

// NewMerger wires the three sources; local and remote may be nil.
func NewMerger(ds *dataset.Store, local localstore.Store, remote RemoteLister, norm *Normalizer, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{dataset: ds, local: local, remote: remote, norm: norm, logger: logger}
}

// LoadAll returns the bundled exercises, then the device's local ones, then
// remote ones not already present. Local and remote failures only shrink the
// result.
func (m *Merger) LoadAll(ctx context.Context, req Request) ([]Exercise, error) {
	base, err := m.Base(ctx, req.Device)
	if err != nil {
		return nil, err
	}
	return m.Combine(base, m.Remote(ctx, req.Credential)), nil
}

// Base is the bundled dataset followed by the device's local exercises. It
// never touches the remote service.
func (m *Merger) Base(ctx context.Context, device string) ([]Exercise, error) {
	bundled, err := m.bundled()
	if err != nil {
		return nil, err
	}
	out := append([]Exercise(nil), bundled...)
	return append(out, m.locals(ctx, device)...), nil
}

// Remote lists the public exercises and, with a credential, the caller's own.
// Errors are logged and yield whatever was fetched.
func (m *Merger) Remote(ctx context.Context, credential string) []Exercise {
	if m.remote == nil {
		return nil
	}
	var raw []trainerdto.ExerciseResource
	pub, err := m.remote.ListPublic(ctx, credential)
	if err != nil {
		m.logger.Warn("remote_list_failed", zap.String("scope", "public"), zap.Error(err))
	}
	raw = append(raw, pub...)
	if strings.TrimSpace(credential) != "" {
		mine, err := m.remote.ListMine(ctx, credential)
		if err != nil {
			m.logger.Warn("remote_list_failed", zap.String("scope", "mine"), zap.Error(err))
		}
		raw = append(raw, mine...)
	}
	byID := make(map[int64]struct{}, len(raw))
	out := make([]Exercise, 0, len(raw))
	for _, r := range raw {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = struct{}{}
		out = append(out, m.norm.FromRemote(r))
	}
	return out
}

// Combine appends the remote exercises that base does not already hold,
// either as a mirrored local record or as the same line for the same side.
func (m *Merger) Combine(base, remotes []Exercise) []Exercise {
	out := append([]Exercise(nil), base...)
	mirrored := make(map[string]struct{})
	seen := make(map[string]struct{}, len(out))
	for _, ex := range out {
		if ex.Source == SourceLocal && ex.BackendID != "" {
			mirrored[ex.BackendID] = struct{}{}
		}
		seen[fullSignature(ex)] = struct{}{}
	}
	skipped := 0
	for _, ex := range remotes {
		if _, ok := mirrored[ex.BackendID]; ok {
			skipped++
			continue
		}
		sig := fullSignature(ex)
		if _, ok := seen[sig]; ok {
			skipped++
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, ex)
	}

	m.logger.Debug("exercise_merge",
		zap.Int("base", len(base)),
		zap.Int("remote", len(remotes)-skipped),
		zap.Int("remote_skipped", skipped),
	)
	return out
}

// Reload drops the cached dataset so the next LoadAll re-reads it.
func (m *Merger) Reload() {
	m.mu.Lock()
	m.base = nil
	m.mu.Unlock()
	m.dataset.Reload()
}

func (m *Merger) bundled() ([]Exercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base != nil {
		return m.base, nil
	}
	entries, err := m.dataset.Entries()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(entries))
	base := make([]Exercise, 0, len(entries))
	for i, e := range entries {
		sig := datasetSignature(e)
		if _, dup := seen[sig]; dup {
			m.logger.Debug("dataset_duplicate", zap.String("exercise_id", e.ID))
			continue
		}
		seen[sig] = struct{}{}
		base = append(base, m.norm.FromDataset(i, e))
	}
	m.base = base
	return base, nil
}

func (m *Merger) locals(ctx context.Context, device string) []Exercise {
	if m.local == nil || strings.TrimSpace(device) == "" {
		return nil
	}
	recs, err := m.local.List(ctx, device)
	if err != nil {
		m.logger.Warn("local_store_list_failed", zap.String("device", device), zap.Error(err))
		return nil
	}
	out := make([]Exercise, 0, len(recs))
	for _, r := range recs {
		out = append(out, m.norm.FromLocal(r))
	}
	return out
}


// datasetSignature trims the PGN tokens, or the explicit analysis moves for
// entries without notation text. Entries with no moves at all never collide.
func datasetSignature(e dataset.Entry) string {
	color := string(ParseColor(e.Color))
	tokens := notation.Normalize(e.PGN, 0)
	if len(tokens) == 0 {
		for _, a := range e.Analysis {
			if m := strings.TrimSpace(a.Move); m != "" {
				tokens = append(tokens, m)
			}
		}
	}
	if len(tokens) == 0 {
		return "id:" + e.ID + "|" + color
	}
	if len(tokens) <= datasetTrim {
		return notation.Signature(nil, color)
	}
	return notation.Signature(tokens[:len(tokens)-datasetTrim], color)
}

// fullSignature is the untrimmed normalized text plus side.
func fullSignature(ex Exercise) string {
	tokens := notation.Normalize(ex.PGN, 0)
	if len(tokens) == 0 {
		tokens = ex.Moves()
	}
	return notation.Signature(tokens, string(ex.Color))
}

// HasRemote reports whether a remote lister is wired.
func (m *Merger) HasRemote() bool { return m != nil && m.remote != nil }
