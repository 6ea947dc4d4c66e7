package exerciseapi

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

// memrepo is used when no DATABASE_URL is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64
	rows   map[int64]memRow
	now    func() time.Time
}

type memRow struct {
	owner string
	ex    trainerdto.ExerciseResource
}

func NewMemoryRepository() Repository {
	return &memrepo{rows: make(map[int64]memRow), now: time.Now}
}

func (m *memrepo) Create(_ context.Context, owner string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ex.ID = m.nextID
	ex.CreatedAt = m.now().UTC()
	ex.Analysis = append([]trainerdto.Annotation(nil), ex.Analysis...)
	m.rows[ex.ID] = memRow{owner: owner, ex: ex}
	out := ex
	return &out, nil
}

func (m *memrepo) ListByOwner(_ context.Context, owner string) ([]trainerdto.ExerciseResource, error) {
	return m.collect(func(r memRow) bool { return r.owner == owner }), nil
}

func (m *memrepo) ListPublic(_ context.Context) ([]trainerdto.ExerciseResource, error) {
	return m.collect(func(r memRow) bool { return r.ex.IsPublic }), nil
}

// collect returns matching rows newest first, like the SQL queries.
func (m *memrepo) collect(keep func(memRow) bool) []trainerdto.ExerciseResource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]trainerdto.ExerciseResource, 0)
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r.ex)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memrepo) Update(_ context.Context, owner string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[ex.ID]
	if !ok || cur.owner != owner {
		return nil, ErrNotFound
	}
	ex.CreatedAt = cur.ex.CreatedAt
	m.rows[ex.ID] = memRow{owner: owner, ex: ex}
	out := ex
	return &out, nil
}

func (m *memrepo) Delete(_ context.Context, owner string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[id]
	if !ok || cur.owner != owner {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
