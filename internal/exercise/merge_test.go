package exercise

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/park285/cheese-trainer/internal/dataset"
	"github.com/park285/cheese-trainer/internal/localstore"
	"github.com/park285/cheese-trainer/internal/oracle"
	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

type fakeRemote struct {
	public []trainerdto.ExerciseResource
	mine   []trainerdto.ExerciseResource
	err    error
	calls  []string
}

func (f *fakeRemote) ListPublic(_ context.Context, _ string) ([]trainerdto.ExerciseResource, error) {
	f.calls = append(f.calls, "public")
	return f.public, f.err
}

func (f *fakeRemote) ListMine(_ context.Context, _ string) ([]trainerdto.ExerciseResource, error) {
	f.calls = append(f.calls, "mine")
	return f.mine, f.err
}

func writeDataset(t *testing.T, body string) *dataset.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exercises.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return dataset.NewStore(path)
}

const twoLines = `
- id: line-1
  name: first
  initialFen: ""
  pgn: 1. e4 e5 2. Nf3 Nc6 3. Bb5 a6
- id: line-2
  name: same line, different tail
  initialFen: ""
  pgn: 1. e4 e5 2. Nf3 Nc6 3. Bc4 Bc5
- id: line-3
  name: same moves as black
  color: black
  initialFen: ""
  pgn: 1. e4 e5 2. Nf3 Nc6 3. Bb5 a6
`

func newMerger(ds *dataset.Store, local localstore.Store, rem RemoteLister) *Merger {
	return NewMerger(ds, local, rem, NewNormalizer(oracle.New(), nil), nil)
}

func TestLoadAll_DatasetDedupIgnoresLastTwoPlies(t *testing.T) {
	m := newMerger(writeDataset(t, twoLines), nil, nil)
	got, err := m.LoadAll(context.Background(), Request{})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 exercises, got %d: %+v", len(got), got)
	}
	if got[0].ID != "line-1" || got[1].ID != "line-3" {
		t.Fatalf("first occurrence must win and order is kept: %s, %s", got[0].ID, got[1].ID)
	}
	if got[1].Color != Black || got[0].Source != SourceDataset {
		t.Fatalf("unexpected normalization: %+v", got[1])
	}
	if len(got[0].Analysis) != 6 || got[0].Analysis[5].Move != "a6" {
		t.Fatalf("analysis = %+v", got[0].Analysis)
	}
}

func TestLoadAll_AnalysisOnlyEntriesKept(t *testing.T) {
	ds := writeDataset(t, `
- id: a
  analysis: [{move: e4}, {move: e5}, {move: Nf3}, {move: Nc6}]
- id: b
  analysis: [{move: d4}, {move: d5}, {move: c4}, {move: e6}]
- id: c
  analysis: [{move: e4}, {move: e5}, {move: Nf3}, {move: Nf6}]
- id: empty-1
- id: empty-2
`)
	got, err := newMerger(ds, nil, nil).LoadAll(context.Background(), Request{})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	ids := make([]string, len(got))
	for i, ex := range got {
		ids[i] = ex.ID
	}
	want := []string{"a", "b", "empty-1", "empty-2"}
	if len(ids) != len(want) {
		t.Fatalf("merged ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("merged ids = %v, want %v", ids, want)
		}
	}
}

func TestLoadAll_LocalAppendedRemoteDeduplicated(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemory()
	_ = local.Append(ctx, "dev", localstore.Record{
		ID: "custom-1", PGN: "1. d4 d5 2. c4", Color: "white",
		CreatedAt: time.Now(), BackendID: "10", Mirror: localstore.MirrorMirrored,
	})
	_ = local.Append(ctx, "dev", localstore.Record{ID: "custom-2", PGN: "1. c4 e5", Color: "white"})

	rem := &fakeRemote{
		public: []trainerdto.ExerciseResource{
			// mirrored copy of custom-1
			{ID: 10, PGN: "1. d4 d5 2. c4", Color: "white"},
			// same text as custom-2
			{ID: 11, PGN: "1. c4 e5", Color: "white"},
			// different side
			{ID: 12, PGN: "1. c4 e5", Color: "black"},
			// same as dataset
			{ID: 13, PGN: "1. e4 e5 2. Nf3 Nc6 3. Bb5 a6", Color: "white"},
		},
		mine: []trainerdto.ExerciseResource{
			{ID: 12, PGN: "1. c4 e5", Color: "black"},
			{ID: 14, PGN: "1. Nf3 d5", Color: "white"},
		},
	}
	m := newMerger(writeDataset(t, twoLines), local, rem)
	got, err := m.LoadAll(ctx, Request{Device: "dev", Credential: "tok"})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	var ids []string
	for _, ex := range got {
		ids = append(ids, ex.ID)
	}
	want := []string{"line-1", "line-3", "custom-1", "custom-2", "backend-12", "backend-14"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	if got[4].Source != SourceRemote || got[4].BackendID != "12" {
		t.Fatalf("remote normalization: %+v", got[4])
	}
}

func TestLoadAll_RemoteFailureAndNoCredential(t *testing.T) {
	rem := &fakeRemote{err: errors.New("boom")}
	m := newMerger(writeDataset(t, twoLines), localstore.NewMemory(), rem)
	got, err := m.LoadAll(context.Background(), Request{Device: "dev"})
	if err != nil {
		t.Fatalf("remote failure must not surface: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected dataset only, got %d", len(got))
	}
	if len(rem.calls) != 1 || rem.calls[0] != "public" {
		t.Fatalf("without credential only public is listed: %v", rem.calls)
	}
}

func TestNormalizer_DegradesInsteadOfDropping(t *testing.T) {
	n := NewNormalizer(oracle.New(), nil)
	ex := n.FromLocal(localstore.Record{ID: "custom-x", InitialFEN: "garbage", PGN: "1. e4 e5 2. Ke3 Nc6", Color: "white"})
	if !ex.Degraded {
		t.Fatalf("expected degraded record")
	}
	if ex.InitialFEN != oracle.StartFEN {
		t.Fatalf("fallback fen = %q", ex.InitialFEN)
	}
	if len(ex.Analysis) != 4 {
		t.Fatalf("tokens must be kept: %+v", ex.Analysis)
	}
	if ex.Name != "White: 1. e4 e5 2. Ke3 Nc6" {
		t.Fatalf("synthesized name = %q", ex.Name)
	}
}

func TestBundledDatasetLoads(t *testing.T) {
	m := newMerger(dataset.NewStore(""), nil, nil)
	got, err := m.LoadAll(context.Background(), Request{})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("bundled dataset is empty")
	}
	for _, ex := range got {
		if ex.Degraded {
			t.Fatalf("bundled exercise %s is degraded", ex.ID)
		}
		if ex.ID == "italian-1b" {
			t.Fatalf("duplicate import must be merged into italian-1")
		}
	}
}
