package localstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and throwaway sessions.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]Record
}

func NewMemory() *Memory { return &Memory{data: map[string][]Record{}} }

var _ Store = (*Memory)(nil)

func (m *Memory) List(_ context.Context, device string) ([]Record, error) {
	if err := checkDevice(device); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record(nil), m.data[Key(device)]...), nil
}

func (m *Memory) Append(_ context.Context, device string, rec Record) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(device)
	m.data[k] = append(m.data[k], rec)
	return nil
}

func (m *Memory) MarkMirrored(_ context.Context, device, id, backendID string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(device)
	next, changed, err := markMirrored(m.data[k], id, backendID)
	if err != nil {
		return err
	}
	if changed {
		m.data[k] = next
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, device, id string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(device)
	next, err := without(m.data[k], id)
	if err != nil {
		return err
	}
	m.data[k] = next
	return nil
}

func (m *Memory) Rename(_ context.Context, device, id, name string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := Key(device)
	next, err := renamed(m.data[k], id, name)
	if err != nil {
		return err
	}
	m.data[k] = next
	return nil
}
