package di

import (
	"github.com/redis/go-redis/v9"

	"stock_sync/internal/feature/synctask/adapters"
	"stock_sync/internal/feature/synctask/usecase"
)

// NewStatusStore returns a Redis-backed run status store, or nil when Redis
// is unavailable so the coordinator keeps the last run in memory.
func NewStatusStore(rdb *redis.Client) usecase.StatusStore {
	if rdb == nil {
		return nil
	}
	return adapters.NewStatusRedis(rdb, "synctask", 0)
}

// NewCoordinator creates the single-flight coordinator for runner.
func NewCoordinator(runner usecase.Runner, rdb *redis.Client) *usecase.Coordinator {
	return usecase.NewCoordinator(runner, NewStatusStore(rdb))
}
