package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prenav/prenav/pkg/types"
)

// SkeletonConfig represents skeleton cache configuration
type SkeletonConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// DefaultSkeletonConfig returns the default skeleton cache tuning.
// Skeletons are cheap and coarse, so the default TTL is much longer than
// the session cache's.
func DefaultSkeletonConfig() *SkeletonConfig {
	return &SkeletonConfig{
		MaxEntries: 100,
		TTL:        30 * time.Minute,
	}
}

// skeletonItem represents an item in the skeleton cache
type skeletonItem struct {
	skeleton  *types.CachedSkeleton
	expiresAt time.Time
	element   *list.Element
}

// SkeletonCache holds lightweight placeholder content keyed by route.
// Overflow evicts in FIFO insertion order rather than by access recency;
// re-setting an existing route keeps its original insertion position.
type SkeletonCache struct {
	mu sync.Mutex

	config *SkeletonConfig
	logger *zap.Logger

	items map[types.Route]*skeletonItem

	// insertOrder tracks insertion order; front is oldest.
	insertOrder *list.List

	stats types.CacheStats

	now func() time.Time
}

// NewSkeletonCache creates a new skeleton cache
func NewSkeletonCache(config *SkeletonConfig, logger *zap.Logger) *SkeletonCache {
	if config == nil {
		config = DefaultSkeletonConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SkeletonCache{
		config:      config,
		logger:      logger,
		items:       make(map[types.Route]*skeletonItem),
		insertOrder: list.New(),
		stats:       types.CacheStats{Capacity: int64(config.MaxEntries)},
		now:         time.Now,
	}
}

// Get retrieves a skeleton by route, deleting and missing on expiry.
func (c *SkeletonCache) Get(route types.Route) *types.CachedSkeleton {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[route]
	if !exists {
		c.stats.Misses++
		c.updateHitRate()
		return nil
	}

	if c.isExpired(item) {
		c.removeItem(route)
		c.stats.Misses++
		c.updateHitRate()
		return nil
	}

	c.stats.Hits++
	c.updateHitRate()
	return item.skeleton
}

// Set stores a skeleton, stamping fresh timestamps. A new route beyond
// the entry limit evicts the oldest inserted route first.
func (c *SkeletonCache) Set(skeleton *types.CachedSkeleton, ttl ...time.Duration) {
	if skeleton == nil || skeleton.Route == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	effective := c.config.TTL
	if len(ttl) > 0 {
		effective = ttl[0]
	}

	now := c.now()
	skeleton.CachedAt = now
	var expiresAt time.Time
	if effective != TTLNever {
		expiresAt = now.Add(effective)
		skeleton.ExpiresAt = expiresAt
	} else {
		skeleton.ExpiresAt = time.Time{}
	}

	if item, exists := c.items[skeleton.Route]; exists {
		// Replacement keeps the original insertion position
		item.skeleton = skeleton
		item.expiresAt = expiresAt
		return
	}

	for len(c.items) >= c.config.MaxEntries && c.insertOrder.Len() > 0 {
		c.evictOldest()
	}

	element := c.insertOrder.PushBack(skeleton.Route)
	c.items[skeleton.Route] = &skeletonItem{
		skeleton:  skeleton,
		expiresAt: expiresAt,
		element:   element,
	}
}

// Has reports whether a non-expired skeleton exists for the route.
func (c *SkeletonCache) Has(route types.Route) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[route]
	if !exists {
		return false
	}
	if c.isExpired(item) {
		c.removeItem(route)
		return false
	}
	return true
}

// Invalidate removes a single route.
func (c *SkeletonCache) Invalidate(route types.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeItem(route)
}

// Clear removes all entries.
func (c *SkeletonCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[types.Route]*skeletonItem)
	c.insertOrder.Init()
}

// SessionResult delivers the authoritative content side of
// GetWithSkeleton.
type SessionResult struct {
	Session *types.CachedSession
	Err     error
}

// GetWithSkeleton returns the cached skeleton synchronously (nil when
// absent) and concurrently resolves the authoritative session, checking
// the session cache before falling back to the fetcher. Callers can render
// the placeholder immediately and swap in real content when the channel
// delivers.
func (c *SkeletonCache) GetWithSkeleton(ctx context.Context, route types.Route, sessionID string, sessions *SessionCache, fetcher types.SessionFetcher) (*types.CachedSkeleton, <-chan SessionResult) {
	skeleton := c.Get(route)

	content := make(chan SessionResult, 1)
	go func() {
		defer close(content)

		if session := sessions.Get(sessionID); session != nil {
			content <- SessionResult{Session: session}
			return
		}

		if fetcher == nil {
			content <- SessionResult{Session: nil}
			return
		}

		session, err := fetcher.FetchSession(ctx, sessionID)
		if err != nil {
			c.logger.Debug("skeleton content fetch failed",
				zap.String("route", route), zap.Error(err))
			content <- SessionResult{Err: err}
			return
		}

		sessions.Set(session)
		content <- SessionResult{Session: session}
	}()

	return skeleton, content
}

// Stats returns cache statistics.
func (c *SkeletonCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)
	if stats.Capacity > 0 {
		stats.Utilization = float64(len(c.items)) / float64(stats.Capacity)
	}
	return stats
}

// Helper methods

func (c *SkeletonCache) isExpired(item *skeletonItem) bool {
	if item.expiresAt.IsZero() {
		return false
	}
	return c.now().After(item.expiresAt)
}

func (c *SkeletonCache) removeItem(route types.Route) {
	item, exists := c.items[route]
	if !exists {
		return
	}

	if item.element != nil {
		c.insertOrder.Remove(item.element)
	}
	delete(c.items, route)
}

func (c *SkeletonCache) evictOldest() {
	element := c.insertOrder.Front()
	if element == nil {
		return
	}

	route := element.Value.(types.Route)
	c.removeItem(route)
	c.stats.Evictions++
}

func (c *SkeletonCache) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		c.stats.HitRate = float64(c.stats.Hits) / float64(total)
	}
}
