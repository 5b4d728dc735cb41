package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang/snappy"
	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "interviewledger:pricing:snapshot:"

// RedisSnapshotCache stores snappy-compressed JSON snapshots shared by every
// replica.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

func (c *RedisSnapshotCache) Save(ctx context.Context, institutionID string, snap domain.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(institutionID), snappy.Encode(nil, raw), c.ttl).Err()
}

func (c *RedisSnapshotCache) Load(ctx context.Context, institutionID string) (*domain.Snapshot, error) {
	compressed, err := c.client.Get(ctx, snapshotKey(institutionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func snapshotKey(institutionID string) string {
	if institutionID == "" {
		return keyPrefix + "_global"
	}
	return keyPrefix + institutionID
}
