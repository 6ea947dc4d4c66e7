// Package stats keeps per-exercise performance counters for a device.
package stats

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrInvalidKey = errors.New("stats: device and exercise id are required")

type Stat struct {
	ExerciseID   string    `json:"exerciseId"`
	Attempts     int64     `json:"attempts"`
	Mistakes     int64     `json:"mistakes"`
	Completions  int64     `json:"completions"`
	LastPlayedAt time.Time `json:"lastPlayedAt,omitempty"`
}

// Delta is added to a Stat. A zero At leaves LastPlayedAt untouched.
type Delta struct {
	Attempts    int64
	Mistakes    int64
	Completions int64
	At          time.Time
}

func (d Delta) empty() bool {
	return d.Attempts == 0 && d.Mistakes == 0 && d.Completions == 0 && d.At.IsZero()
}

type Store interface {
	Record(ctx context.Context, device, exerciseID string, d Delta) error
	// Get returns a zero Stat for an exercise never played.
	Get(ctx context.Context, device, exerciseID string) (Stat, error)
}

func checkKey(device, exerciseID string) error {
	if strings.TrimSpace(device) == "" || strings.TrimSpace(exerciseID) == "" {
		return ErrInvalidKey
	}
	return nil
}

type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]Stat
}

func NewMemory() *Memory { return &Memory{data: map[string]map[string]Stat{}} }

func (m *Memory) Record(_ context.Context, device, exerciseID string, d Delta) error {
	if err := checkKey(device, exerciseID); err != nil {
		return err
	}
	if d.empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := m.data[device]
	if byID == nil {
		byID = map[string]Stat{}
		m.data[device] = byID
	}
	st := byID[exerciseID]
	st.ExerciseID = exerciseID
	st.Attempts += d.Attempts
	st.Mistakes += d.Mistakes
	st.Completions += d.Completions
	if !d.At.IsZero() {
		st.LastPlayedAt = d.At.UTC()
	}
	byID[exerciseID] = st
	return nil
}

func (m *Memory) Get(_ context.Context, device, exerciseID string) (Stat, error) {
	if err := checkKey(device, exerciseID); err != nil {
		return Stat{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data[device][exerciseID]
	if !ok {
		return Stat{ExerciseID: exerciseID}, nil
	}
	return st, nil
}
