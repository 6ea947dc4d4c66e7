package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLite keeps counters in the exercise_stats table created by
// localstore.Migrate.
type SQLite struct{ db *sql.DB }

func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

func (s *SQLite) Record(ctx context.Context, device, exerciseID string, d Delta) error {
	if err := checkKey(device, exerciseID); err != nil {
		return err
	}
	if d.empty() {
		return nil
	}
	var at string
	if !d.At.IsZero() {
		at = d.At.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exercise_stats (device, exercise_id, attempts, mistakes, completions, last_played_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(device, exercise_id) DO UPDATE SET
			attempts = attempts + excluded.attempts,
			mistakes = mistakes + excluded.mistakes,
			completions = completions + excluded.completions,
			last_played_at = CASE WHEN excluded.last_played_at = '' THEN last_played_at ELSE excluded.last_played_at END`,
		device, exerciseID, d.Attempts, d.Mistakes, d.Completions, at)
	if err != nil {
		return fmt.Errorf("record stats %s: %w", exerciseID, err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, device, exerciseID string) (Stat, error) {
	if err := checkKey(device, exerciseID); err != nil {
		return Stat{}, err
	}
	st := Stat{ExerciseID: exerciseID}
	var at string
	err := s.db.QueryRowContext(ctx, `
		SELECT attempts, mistakes, completions, last_played_at
		FROM exercise_stats WHERE device = ? AND exercise_id = ?`, device, exerciseID,
	).Scan(&st.Attempts, &st.Mistakes, &st.Completions, &at)
	if err == sql.ErrNoRows {
		return st, nil
	}
	if err != nil {
		return Stat{}, fmt.Errorf("get stats %s: %w", exerciseID, err)
	}
	if at != "" {
		if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
			st.LastPlayedAt = ts
		}
	}
	return st, nil
}
