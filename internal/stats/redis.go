package stats

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAttempts    = "attempts"
	fieldMistakes    = "mistakes"
	fieldCompletions = "completions"
	fieldLastPlayed  = "last_played"
)

// Redis stores one hash per device; fields are "<exercise id>:<counter>".
type Redis struct{ rdb *redis.Client }

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

func Key(device string) string { return "trainer:stats:" + strings.TrimSpace(device) }

func field(exerciseID, name string) string { return exerciseID + ":" + name }

func (s *Redis) Record(ctx context.Context, device, exerciseID string, d Delta) error {
	if err := checkKey(device, exerciseID); err != nil {
		return err
	}
	if d.empty() {
		return nil
	}
	key := Key(device)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if d.Attempts != 0 {
			p.HIncrBy(ctx, key, field(exerciseID, fieldAttempts), d.Attempts)
		}
		if d.Mistakes != 0 {
			p.HIncrBy(ctx, key, field(exerciseID, fieldMistakes), d.Mistakes)
		}
		if d.Completions != 0 {
			p.HIncrBy(ctx, key, field(exerciseID, fieldCompletions), d.Completions)
		}
		if !d.At.IsZero() {
			p.HSet(ctx, key, field(exerciseID, fieldLastPlayed), d.At.UTC().Format(time.RFC3339Nano))
		}
		return nil
	})
	return err
}

func (s *Redis) Get(ctx context.Context, device, exerciseID string) (Stat, error) {
	if err := checkKey(device, exerciseID); err != nil {
		return Stat{}, err
	}
	vals, err := s.rdb.HMGet(ctx, Key(device),
		field(exerciseID, fieldAttempts),
		field(exerciseID, fieldMistakes),
		field(exerciseID, fieldCompletions),
		field(exerciseID, fieldLastPlayed),
	).Result()
	if err != nil {
		return Stat{}, err
	}
	st := Stat{ExerciseID: exerciseID}
	st.Attempts = asInt(vals[0])
	st.Mistakes = asInt(vals[1])
	st.Completions = asInt(vals[2])
	if raw, ok := vals[3].(string); ok && raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			st.LastPlayedAt = ts
		}
	}
	return st, nil
}

func asInt(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
