package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// Redis stores each device's array under Key(device). Writes are
// read-modify-write inside WATCH so concurrent tabs cannot drop records.
// 디바이스 단위 키 하나에 JSON 배열 전체를 저장.
type Redis struct{ rdb *redis.Client }

func NewRedis(rdb *redis.Client) *Redis { return &Redis{rdb: rdb} }

// NewRedisFromURL parses a redis:// URL and pings the server.
func NewRedisFromURL(ctx context.Context, url string) (*Redis, *redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb), rdb, nil
}

var _ Store = (*Redis)(nil)

func (s *Redis) List(ctx context.Context, device string) ([]Record, error) {
	if err := checkDevice(device); err != nil {
		return nil, err
	}
	raw, err := s.rdb.Get(ctx, Key(device)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *Redis) Append(ctx context.Context, device string, rec Record) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		return append(recs, rec), nil
	})
}

func (s *Redis) MarkMirrored(ctx context.Context, device, id, backendID string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		next, changed, err := markMirrored(recs, id, backendID)
		if err != nil || !changed {
			return nil, err
		}
		return next, nil
	})
}

func (s *Redis) Rename(ctx context.Context, device, id, name string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		return renamed(recs, id, name)
	})
}

func (s *Redis) Delete(ctx context.Context, device, id string) error {
	if err := checkDevice(device); err != nil {
		return err
	}
	return s.update(ctx, Key(device), func(recs []Record) ([]Record, error) {
		return without(recs, id)
	})
}

// update applies fn under WATCH; a nil slice from fn means "no write".
func (s *Redis) update(ctx context.Context, key string, fn func([]Record) ([]Record, error)) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		var recs []Record
		if err == nil {
			if recs, err = decode(raw); err != nil {
				return err
			}
		}
		next, err := fn(recs)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("localstore: %s: too much contention", key)
}

func decode(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var recs []Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode local exercises: %w", err)
	}
	return recs, nil
}
