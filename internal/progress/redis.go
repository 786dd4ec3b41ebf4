package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix   = "analisis:progreso:"
	maxAttempts = 16
	defaultTTL  = 7 * 24 * time.Hour
)

// RedisStore keeps one JSON document per run. Read-modify-write cycles run
// under WATCH so concurrent stage updates from the parallel computers never
// lose each other's fields.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wraps an existing client. ttl <= 0 selects the default.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func key(runID string) string {
	return keyPrefix + runID
}

func (s *RedisStore) Init(ctx context.Context, runID string) error {
	rec := NewRecord(runID, s.now())
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.client.Set(ctx, key(runID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("init progress %s: %w", runID, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, runID, stage string, upd StageUpdate) error {
	return s.mutate(ctx, runID, func(rec *Record) error {
		return rec.Apply(stage, upd, s.now())
	})
}

func (s *RedisStore) SetState(ctx context.Context, runID string, state State, message string) error {
	return s.mutate(ctx, runID, func(rec *Record) error {
		rec.SetState(state, message, s.now())
		return nil
	})
}

func (s *RedisStore) Get(ctx context.Context, runID string) (Record, error) {
	b, err := s.client.Get(ctx, key(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get progress %s: %w", runID, err)
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode progress %s: %w", runID, err)
	}
	return rec, nil
}

func (s *RedisStore) mutate(ctx context.Context, runID string, fn func(*Record) error) error {
	k := key(runID)

	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if err != nil {
			return err
		}

		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("decode progress: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		out, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode progress: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, out, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Debug().Str("run", runID).Int("attempt", attempt).Msg("Progress update raced, retrying")
	}
	return fmt.Errorf("update progress %s: too much contention", runID)
}
