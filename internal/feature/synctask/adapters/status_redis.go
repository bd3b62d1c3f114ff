// Package adapters provides storage implementations for the synctask feature.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stock_sync/internal/feature/synctask/domain/entity"
	"stock_sync/internal/feature/synctask/usecase"
)

// defaultStatusTTL keeps the last run visible well past a weekly schedule.
const defaultStatusTTL = 30 * 24 * time.Hour

// StatusRedis implements usecase.StatusStore using Redis.
type StatusRedis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ usecase.StatusStore = (*StatusRedis)(nil)

// NewStatusRedis creates a new StatusRedis instance.
// If ttl is 0, it defaults to 30 days. If prefix is empty, it uses "synctask".
func NewStatusRedis(client *redis.Client, prefix string, ttl time.Duration) *StatusRedis {
	if prefix == "" {
		prefix = "synctask"
	}
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusRedis{client: client, prefix: prefix, ttl: ttl}
}

// lastKey returns the Redis key holding the last finished run.
func (r *StatusRedis) lastKey() string {
	return fmt.Sprintf("%s:last_run", r.prefix)
}

// SaveLast stores rec as the last finished run.
func (r *StatusRedis) SaveLast(ctx context.Context, rec entity.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	return r.client.Set(ctx, r.lastKey(), data, r.ttl).Err()
}

// Last returns the last finished run, or nil if none is stored.
func (r *StatusRedis) Last(ctx context.Context) (*entity.RunRecord, error) {
	data, err := r.client.Get(ctx, r.lastKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec entity.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Delete corrupted entry
		_ = r.client.Del(ctx, r.lastKey()).Err()
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return &rec, nil
}
