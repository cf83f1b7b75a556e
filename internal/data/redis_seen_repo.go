// Package data provides the storage adapters backing the agent's optional
// dedup store and outcome journal.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSeenRepo implements the SeenRangeStore interface using Redis. It backs
// the explicit dedup layer for reporting services that are not idempotent on
// eventRangeID.
type RedisSeenRepo struct {
	client redis.UniversalClient
}

// NewRedisSeenRepo creates a new RedisSeenRepo with the given Redis client.
func NewRedisSeenRepo(client redis.UniversalClient) *RedisSeenRepo {
	return &RedisSeenRepo{client: client}
}

// MarkSeen records the range id and reports whether it was already recorded.
// SetNX keeps check-and-mark atomic across agent restarts.
func (r *RedisSeenRepo) MarkSeen(ctx context.Context, jobID, rangeID string, ttl time.Duration) (bool, error) {
	if jobID == "" || rangeID == "" {
		return false, errors.New("job id and range id cannot be empty")
	}

	stored, err := r.client.SetNX(ctx, seenKey(jobID, rangeID), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return !stored, nil
}

// Forget drops the seen marker for a range id.
func (r *RedisSeenRepo) Forget(ctx context.Context, jobID, rangeID string) error {
	if jobID == "" || rangeID == "" {
		return errors.New("job id and range id cannot be empty")
	}
	if err := r.client.Del(ctx, seenKey(jobID, rangeID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func seenKey(jobID, rangeID string) string {
	return "rangeagent:seen:" + jobID + ":" + rangeID
}
