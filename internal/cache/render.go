package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/prenav/prenav/pkg/types"
)

// RenderConfig represents speculative render cache configuration
type RenderConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	MaxBytes   int64         `yaml:"max_bytes"`
	StaleTTL   time.Duration `yaml:"stale_ttl"`
}

// DefaultRenderConfig returns the default render cache tuning
func DefaultRenderConfig() *RenderConfig {
	return &RenderConfig{
		MaxEntries: 10,
		MaxBytes:   4 * 1024 * 1024, // 4MB
		StaleTTL:   time.Minute,
	}
}

// RenderStats tracks speculative render cache performance
type RenderStats struct {
	Entries     int    `json:"entries"`
	Bytes       int64  `json:"bytes"`
	MaxEntries  int    `json:"max_entries"`
	MaxBytes    int64  `json:"max_bytes"`
	Prerenders  uint64 `json:"prerenders"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	FetchErrors uint64 `json:"fetch_errors"`
}

// RenderCache holds fully rendered page output bounded by both entry count
// and total bytes. Eviction scores each entry by confidence decayed over
// age; stale entries are evicted unconditionally.
type RenderCache struct {
	mu sync.Mutex

	config  *RenderConfig
	logger  *zap.Logger
	fetcher types.PageFetcher
	flight  singleflight.Group

	items        map[types.Route]*types.PreRenderedPage
	currentBytes int64
	currentRoute types.Route

	stats RenderStats

	now func() time.Time
}

// NewRenderCache creates a new speculative render cache
func NewRenderCache(config *RenderConfig, fetcher types.PageFetcher, logger *zap.Logger) *RenderCache {
	if config == nil {
		config = DefaultRenderConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RenderCache{
		config:  config,
		logger:  logger,
		fetcher: fetcher,
		items:   make(map[types.Route]*types.PreRenderedPage),
		stats: RenderStats{
			MaxEntries: config.MaxEntries,
			MaxBytes:   config.MaxBytes,
		},
		now: time.Now,
	}
}

// SetCurrentRoute records where the user currently is; prerendering the
// current route is skipped.
func (c *RenderCache) SetCurrentRoute(route types.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentRoute = route
}

// Prerender fetches and caches rendered output for a route ahead of
// navigation. It reports true when a usable entry exists afterwards; a
// fresh, non-stale entry short-circuits without fetching, and concurrent
// calls for the same route share one fetch. Fetch failures are swallowed
// and reported as false, never as an error. A page that alone exceeds the
// byte budget is rejected.
func (c *RenderCache) Prerender(ctx context.Context, route types.Route, confidence float64) bool {
	c.mu.Lock()
	skip := route == "" || route == c.currentRoute
	c.mu.Unlock()
	if skip {
		return false
	}

	if c.hasFresh(route) {
		return true
	}

	if c.fetcher == nil {
		return false
	}

	cached, _, _ := c.flight.Do(route, func() (interface{}, error) {
		// A concurrent trigger may have rendered the route already
		if c.hasFresh(route) {
			return true, nil
		}
		return c.render(ctx, route, confidence), nil
	})
	return cached.(bool)
}

// hasFresh reports whether a fresh, non-stale entry exists for a route.
func (c *RenderCache) hasFresh(route types.Route) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.items[route]; exists {
		return !existing.Stale && !c.isExpired(existing)
	}
	return false
}

func (c *RenderCache) render(ctx context.Context, route types.Route, confidence float64) bool {
	html, err := c.fetcher.FetchPage(ctx, route)
	if err != nil {
		c.mu.Lock()
		c.stats.FetchErrors++
		c.mu.Unlock()
		c.logger.Debug("prerender fetch failed", zap.String("route", route), zap.Error(err))
		return false
	}

	size := int64(len(html))

	c.mu.Lock()
	defer c.mu.Unlock()

	// A page that alone overflows the byte budget is never admitted;
	// evicting the whole cache for it would still breach the bound.
	if size > c.config.MaxBytes {
		c.logger.Debug("prerender rejected, page exceeds byte budget",
			zap.String("route", route),
			zap.Int64("bytes", size),
			zap.Int64("budget", c.config.MaxBytes))
		return false
	}

	// Replacing an entry releases its bytes first
	if existing, exists := c.items[route]; exists {
		c.currentBytes -= existing.Size
		delete(c.items, route)
	}

	c.evictIfNeeded(size)

	c.items[route] = &types.PreRenderedPage{
		Route:        route,
		HTML:         html,
		PrefetchedAt: c.now(),
		Confidence:   confidence,
		Size:         size,
	}
	c.currentBytes += size
	c.stats.Prerenders++

	c.logger.Debug("prerendered route",
		zap.String("route", route),
		zap.Float64("confidence", confidence),
		zap.Int64("bytes", size))

	return true
}

// Navigate reports whether a cached, non-stale, non-expired entry exists
// for the route, meaning the caller may perform an instant content swap.
// An expired entry is deleted; a stale one is rejected but left for the
// next eviction pass.
func (c *RenderCache) Navigate(route types.Route) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[route]
	if !exists {
		c.stats.Misses++
		return false
	}

	if c.isExpired(entry) {
		c.removeEntry(route)
		c.stats.Misses++
		return false
	}

	if entry.Stale {
		c.stats.Misses++
		return false
	}

	c.stats.Hits++
	c.currentRoute = route
	return true
}

// Get returns the cached page for a route if it is fresh and non-stale.
func (c *RenderCache) Get(route types.Route) *types.PreRenderedPage {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.items[route]
	if !exists {
		return nil
	}
	if c.isExpired(entry) {
		c.removeEntry(route)
		return nil
	}
	if entry.Stale {
		return nil
	}
	return entry
}

// Invalidate marks matching entries stale without removing them; with no
// routes given, every entry is marked. Stale entries are evicted lazily on
// the next eviction pass or rejected on the next Navigate check.
func (c *RenderCache) Invalidate(routes ...types.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(routes) == 0 {
		for _, entry := range c.items {
			entry.Stale = true
		}
		return
	}

	for _, route := range routes {
		if entry, exists := c.items[route]; exists {
			entry.Stale = true
		}
	}
}

// Clear removes all entries.
func (c *RenderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[types.Route]*types.PreRenderedPage)
	c.currentBytes = 0
}

// Stats returns render cache statistics.
func (c *RenderCache) Stats() RenderStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)
	stats.Bytes = c.currentBytes
	return stats
}

// Helper methods

func (c *RenderCache) isExpired(entry *types.PreRenderedPage) bool {
	if c.config.StaleTTL <= 0 {
		return false
	}
	return c.now().Sub(entry.PrefetchedAt) >= c.config.StaleTTL
}

// score decays an entry's confidence over its age with a one-minute
// scaling constant.
func (c *RenderCache) score(entry *types.PreRenderedPage) float64 {
	ageMs := float64(c.now().Sub(entry.PrefetchedAt).Milliseconds())
	return entry.Confidence / (1 + ageMs/60000)
}

// evictIfNeeded removes entries one at a time until the incoming size fits
// both the entry and byte budgets. Stale entries go first regardless of
// score; otherwise the lowest-scoring entry is selected each iteration.
func (c *RenderCache) evictIfNeeded(incoming int64) {
	for len(c.items) > 0 {
		needRoom := len(c.items) >= c.config.MaxEntries ||
			c.currentBytes+incoming > c.config.MaxBytes
		if !needRoom {
			return
		}

		var victim types.Route
		victimScore := 0.0
		found := false

		for route, entry := range c.items {
			if entry.Stale {
				victim = route
				found = true
				break
			}
			s := c.score(entry)
			if !found || s < victimScore {
				victim = route
				victimScore = s
				found = true
			}
		}

		if !found {
			return
		}
		c.removeEntry(victim)
		c.stats.Evictions++
	}
}

func (c *RenderCache) removeEntry(route types.Route) {
	entry, exists := c.items[route]
	if !exists {
		return
	}
	c.currentBytes -= entry.Size
	delete(c.items, route)
}
