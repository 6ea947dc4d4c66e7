// Package exerciseapi is the remote persistence service for authored exercises.
package exerciseapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-trainer/pkg/trainerdto"
)

var ErrNotFound = errors.New("exercise not found")

type Repository interface {
	Create(ctx context.Context, owner string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error)
	ListByOwner(ctx context.Context, owner string) ([]trainerdto.ExerciseResource, error)
	ListPublic(ctx context.Context) ([]trainerdto.ExerciseResource, error)
	// Update and Delete only touch rows owned by owner; anything else is ErrNotFound.
	// 타인 소유 여부를 노출하지 않기 위해 404로 통일.
	Update(ctx context.Context, owner string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error)
	Delete(ctx context.Context, owner string, id int64) error
}

const schema = `
CREATE TABLE IF NOT EXISTS exercises (
	id          BIGSERIAL PRIMARY KEY,
	owner       TEXT        NOT NULL,
	name        TEXT        NOT NULL,
	initial_fen TEXT        NOT NULL,
	pgn         TEXT        NOT NULL,
	analysis    JSONB       NOT NULL DEFAULT '[]'::jsonb,
	color       TEXT        NOT NULL,
	is_public   BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_exercises_owner ON exercises(owner);
CREATE INDEX IF NOT EXISTS idx_exercises_public ON exercises(is_public) WHERE is_public;
`

type postgresRepository struct {
	db *sql.DB
}

// OpenPostgres connects, pings and ensures the exercises table exists.
func OpenPostgres(databaseURL string) (Repository, func() error, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return NewPostgresRepository(db), db.Close, nil
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

const selectColumns = `id, name, initial_fen, pgn, analysis, color, is_public, created_at`

func (r *postgresRepository) Create(ctx context.Context, owner string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error) {
	analysis, err := marshalAnalysis(ex.Analysis)
	if err != nil {
		return nil, err
	}
	const query = `
		INSERT INTO exercises (owner, name, initial_fen, pgn, analysis, color, is_public)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		RETURNING ` + selectColumns
	row := r.db.QueryRowContext(ctx, query, owner, ex.Name, ex.InitialFEN, ex.PGN, string(analysis), ex.Color, ex.IsPublic)
	out, err := scanExercise(row)
	if err != nil {
		return nil, fmt.Errorf("insert exercise: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) ListByOwner(ctx context.Context, owner string) ([]trainerdto.ExerciseResource, error) {
	query := `SELECT ` + selectColumns + ` FROM exercises WHERE owner = $1 ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query, owner)
}

func (r *postgresRepository) ListPublic(ctx context.Context) ([]trainerdto.ExerciseResource, error) {
	query := `SELECT ` + selectColumns + ` FROM exercises WHERE is_public ORDER BY created_at DESC, id DESC`
	return r.list(ctx, query)
}

func (r *postgresRepository) list(ctx context.Context, query string, args ...any) ([]trainerdto.ExerciseResource, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	out := make([]trainerdto.ExerciseResource, 0)
	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) Update(ctx context.Context, owner string, ex trainerdto.ExerciseResource) (*trainerdto.ExerciseResource, error) {
	analysis, err := marshalAnalysis(ex.Analysis)
	if err != nil {
		return nil, err
	}
	const query = `
		UPDATE exercises
		SET name = $3, initial_fen = $4, pgn = $5, analysis = $6::jsonb, color = $7, is_public = $8
		WHERE id = $1 AND owner = $2
		RETURNING ` + selectColumns
	row := r.db.QueryRowContext(ctx, query, ex.ID, owner, ex.Name, ex.InitialFEN, ex.PGN, string(analysis), ex.Color, ex.IsPublic)
	out, err := scanExercise(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update exercise: %w", err)
	}
	return out, nil
}

func (r *postgresRepository) Delete(ctx context.Context, owner string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exercises WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete exercise: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExercise(s scanner) (*trainerdto.ExerciseResource, error) {
	var (
		ex       trainerdto.ExerciseResource
		analysis []byte
	)
	if err := s.Scan(&ex.ID, &ex.Name, &ex.InitialFEN, &ex.PGN, &analysis, &ex.Color, &ex.IsPublic, &ex.CreatedAt); err != nil {
		return nil, err
	}
	if len(analysis) > 0 {
		if err := json.Unmarshal(analysis, &ex.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return &ex, nil
}

func marshalAnalysis(a []trainerdto.Annotation) ([]byte, error) {
	if a == nil {
		a = []trainerdto.Annotation{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return b, nil
}
