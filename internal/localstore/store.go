// Package localstore keeps the exercises a device has authored. Every backend
// stores one JSON array per device under a fixed key.
package localstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrRecordNotFound = errors.New("local exercise not found")
	ErrInvalidDevice  = errors.New("device id is required")
)

// MirrorState tracks whether a record is owed to the remote service.
type MirrorState string

const (
	MirrorLocal    MirrorState = "local"
	MirrorPending  MirrorState = "pending"
	MirrorMirrored MirrorState = "mirrored"
)

type Record struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	InitialFEN string      `json:"initialFen"`
	PGN        string      `json:"pgn"`
	Color      string      `json:"color"`
	CreatedAt  time.Time   `json:"createdAt"`
	IsPublic   bool        `json:"isPublic"`
	BackendID  string      `json:"backendId,omitempty"`
	Mirror     MirrorState `json:"mirror,omitempty"`
}

type Store interface {
	List(ctx context.Context, device string) ([]Record, error)
	Append(ctx context.Context, device string, rec Record) error
	MarkMirrored(ctx context.Context, device, id, backendID string) error
	Delete(ctx context.Context, device, id string) error
	// Rename sets the display name of one record.
	Rename(ctx context.Context, device, id, name string) error
}

// Key is the per-device storage key shared by all backends.
func Key(device string) string {
	return "trainer:custom-exercises:" + strings.TrimSpace(device)
}

func checkDevice(device string) error {
	if strings.TrimSpace(device) == "" {
		return ErrInvalidDevice
	}
	return nil
}

// markMirrored returns a copy of recs with id moved to the mirrored state.
// An already mirrored record is left untouched.
func markMirrored(recs []Record, id, backendID string) ([]Record, bool, error) {
	out := append([]Record(nil), recs...)
	for i := range out {
		if out[i].ID != id {
			continue
		}
		if out[i].Mirror == MirrorMirrored && out[i].BackendID != "" {
			return out, false, nil
		}
		out[i].Mirror = MirrorMirrored
		out[i].BackendID = backendID
		return out, true, nil
	}
	return nil, false, ErrRecordNotFound
}

func renamed(recs []Record, id, name string) ([]Record, error) {
	out := append([]Record(nil), recs...)
	for i := range out {
		if out[i].ID == id {
			out[i].Name = name
			return out, nil
		}
	}
	return nil, ErrRecordNotFound
}

func without(recs []Record, id string) ([]Record, error) {
	out := make([]Record, 0, len(recs))
	found := false
	for _, r := range recs {
		if r.ID == id {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		return nil, ErrRecordNotFound
	}
	return out, nil
}

// Pending filters the records that still owe a remote mirror.
func Pending(recs []Record) []Record {
	var out []Record
	for _, r := range recs {
		if r.Mirror == MirrorPending {
			out = append(out, r)
		}
	}
	return out
}
