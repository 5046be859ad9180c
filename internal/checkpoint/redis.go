package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces checkpoint keys.
const DefaultRedisPrefix = "resumeflow"

// RedisStore appends JSON checkpoints to a list per run:
//
//	Key:   "{prefix}:{runID}:checkpoints"
//	Type:  List, in step order
//	Value: JSON(Checkpoint)
//
// Steps are saved in order by a single run, so the list index equals the step.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to redisURL. A ttl of zero keeps keys forever.
func NewRedisStore(redisURL, keyPrefix string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if keyPrefix == "" {
		keyPrefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:    redis.NewClient(opts),
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}, nil
}

func (r *RedisStore) key(runID string) string {
	return fmt.Sprintf("%s:%s:checkpoints", r.keyPrefix, runID)
}

func (r *RedisStore) Save(ctx context.Context, cp Checkpoint) error {
	value, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	key := r.key(cp.RunID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, value)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

func (r *RedisStore) Latest(ctx context.Context, runID string) (Checkpoint, error) {
	data, err := r.client.LIndex(ctx, r.key(runID), -1).Result()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to read latest checkpoint: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return cp, nil
}

func (r *RedisStore) List(ctx context.Context, runID string) ([]Checkpoint, error) {
	values, err := r.client.LRange(ctx, r.key(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	out := make([]Checkpoint, 0, len(values))
	for _, v := range values {
		var cp Checkpoint
		if err := json.Unmarshal([]byte(v), &cp); err != nil {
			continue // skip malformed entries
		}
		out = append(out, cp)
	}
	return out, nil
}

func (r *RedisStore) Clear(ctx context.Context, runID string) error {
	if err := r.client.Del(ctx, r.key(runID)).Err(); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
