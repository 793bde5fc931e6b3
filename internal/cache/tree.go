package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/threadmill/threadmill/pkg/logging"
)

// TreeStore caches serialized reply trees per thread. Misses and cache
// failures are silent; storage stays the source of truth.
type TreeStore struct {
	cache *Cache
	ttl   time.Duration
}

// NewTreeStore creates a new tree store with the given entry TTL
func NewTreeStore(c *Cache, ttl time.Duration) *TreeStore {
	return &TreeStore{cache: c, ttl: ttl}
}

// GetThread retrieves a thread's cached tree payload
func (s *TreeStore) GetThread(ctx context.Context, threadID int64) ([]byte, bool) {
	payload, err := s.cache.Get(ctx, ThreadKey(threadID))
	if err != nil {
		return nil, false
	}
	return []byte(payload), true
}

// SetThread stores a thread's tree payload
func (s *TreeStore) SetThread(ctx context.Context, threadID int64, payload []byte) {
	if err := s.cache.Set(ctx, ThreadKey(threadID), payload, s.ttl); err != nil && err != ErrCacheDisabled {
		logging.GetLogger().Warn("Failed to cache thread tree",
			zap.Int64("thread_id", threadID),
			zap.Error(err))
	}
}

// InvalidateThread drops a thread's cached tree
func (s *TreeStore) InvalidateThread(ctx context.Context, threadID int64) {
	if err := s.cache.Delete(ctx, ThreadKey(threadID)); err != nil && err != ErrCacheDisabled {
		logging.GetLogger().Warn("Failed to invalidate thread tree",
			zap.Int64("thread_id", threadID),
			zap.Error(err))
	}
}
