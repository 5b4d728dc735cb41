package cache

import (
	"github.com/railzwaylabs/interviewledger/internal/config"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
}

// Provide picks the redis-backed cache when a client is available, the
// in-process one otherwise, and none when snapshots are disabled.
func Provide(p Params) domain.SnapshotCache {
	if !p.Config.Storage.SnapshotEnabled {
		return nil
	}
	if p.Redis != nil {
		return NewRedisSnapshotCache(p.Redis, p.Config.Storage.SnapshotTTL)
	}
	return NewMemorySnapshotCache()
}
