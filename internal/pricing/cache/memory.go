package cache

import (
	"context"
	"sync"

	"github.com/railzwaylabs/interviewledger/internal/pricing/domain"
)

// MemorySnapshotCache keeps snapshots in process. Used when redis is
// disabled.
type MemorySnapshotCache struct {
	mu    sync.RWMutex
	items map[string]domain.Snapshot
}

func NewMemorySnapshotCache() *MemorySnapshotCache {
	return &MemorySnapshotCache{items: make(map[string]domain.Snapshot)}
}

func (c *MemorySnapshotCache) Save(_ context.Context, institutionID string, snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[institutionID] = snap
	return nil
}

func (c *MemorySnapshotCache) Load(_ context.Context, institutionID string) (*domain.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.items[institutionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}
