package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "trainer.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"redis":  NewRedis(rdb),
		"sqlite": lite,
	}
}

func rec(id string, mirror MirrorState) Record {
	return Record{
		ID:         id,
		Name:       "White: 1. e4 e5",
		InitialFEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		PGN:        "1. e4 e5",
		Color:      "white",
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Mirror:     mirror,
	}
}

func TestStore_AppendListOrder(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if got, err := s.List(ctx, "dev1"); err != nil || len(got) != 0 {
				t.Fatalf("empty list: %v %v", got, err)
			}
			for _, id := range []string{"custom-a", "custom-b"} {
				if err := s.Append(ctx, "dev1", rec(id, MirrorLocal)); err != nil {
					t.Fatalf("Append %s: %v", id, err)
				}
			}
			got, err := s.List(ctx, "dev1")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 || got[0].ID != "custom-a" || got[1].ID != "custom-b" {
				t.Fatalf("order: %+v", got)
			}
			if !got[0].CreatedAt.Equal(rec("x", "").CreatedAt) {
				t.Fatalf("createdAt lost: %v", got[0].CreatedAt)
			}
			if other, _ := s.List(ctx, "dev2"); len(other) != 0 {
				t.Fatalf("device isolation broken: %+v", other)
			}
		})
	}
}

func TestStore_MarkMirroredIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Append(ctx, "dev", rec("custom-a", MirrorPending))
			if p := Pending(mustList(t, s, "dev")); len(p) != 1 {
				t.Fatalf("pending = %d", len(p))
			}
			if err := s.MarkMirrored(ctx, "dev", "custom-a", "42"); err != nil {
				t.Fatalf("MarkMirrored: %v", err)
			}
			if err := s.MarkMirrored(ctx, "dev", "custom-a", "99"); err != nil {
				t.Fatalf("MarkMirrored again: %v", err)
			}
			got := mustList(t, s, "dev")
			if got[0].Mirror != MirrorMirrored || got[0].BackendID != "42" {
				t.Fatalf("mirror state: %+v", got[0])
			}
			if len(Pending(got)) != 0 {
				t.Fatalf("nothing should be pending")
			}
			if err := s.MarkMirrored(ctx, "dev", "missing", "1"); !errors.Is(err, ErrRecordNotFound) {
				t.Fatalf("expected ErrRecordNotFound, got %v", err)
			}
		})
	}
}

func TestStore_DeleteAndDeviceRequired(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Append(ctx, "dev", rec("custom-a", MirrorLocal))
			_ = s.Append(ctx, "dev", rec("custom-b", MirrorLocal))
			if err := s.Delete(ctx, "dev", "custom-a"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			got := mustList(t, s, "dev")
			if len(got) != 1 || got[0].ID != "custom-b" {
				t.Fatalf("after delete: %+v", got)
			}
			if err := s.Delete(ctx, "dev", "custom-a"); !errors.Is(err, ErrRecordNotFound) {
				t.Fatalf("double delete: %v", err)
			}
			if err := s.Append(ctx, " ", rec("x", MirrorLocal)); !errors.Is(err, ErrInvalidDevice) {
				t.Fatalf("expected ErrInvalidDevice, got %v", err)
			}
		})
	}
}

func TestStore_Rename(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.Append(ctx, "dev", rec("custom-a", MirrorMirrored))
			if err := s.Rename(ctx, "dev", "custom-a", "Catalan"); err != nil {
				t.Fatalf("Rename: %v", err)
			}
			got := mustList(t, s, "dev")
			if len(got) != 1 || got[0].Name != "Catalan" || got[0].Mirror != MirrorMirrored {
				t.Fatalf("after rename: %+v", got)
			}
			if err := s.Rename(ctx, "dev", "missing", "x"); !errors.Is(err, ErrRecordNotFound) {
				t.Fatalf("expected ErrRecordNotFound, got %v", err)
			}
		})
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer lite.Close()
	if err := Migrate(lite.db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var version, rows int
	if err := lite.db.QueryRow(`SELECT MAX(version), COUNT(*) FROM schema_migrations`).Scan(&version, &rows); err != nil {
		t.Fatalf("read versions: %v", err)
	}
	if version != SchemaVersion || rows != SchemaVersion {
		t.Fatalf("schema_migrations = max %d rows %d, want %d", version, rows, SchemaVersion)
	}
}

func mustList(t *testing.T, s Store, device string) []Record {
	t.Helper()
	got, err := s.List(context.Background(), device)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return got
}
