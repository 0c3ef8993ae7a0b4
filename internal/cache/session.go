package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prenav/prenav/pkg/types"
)

// TTLNever marks an entry that should never expire, used during bulk
// preload.
const TTLNever time.Duration = -1

// SessionConfig represents session cache configuration
type SessionConfig struct {
	MaxEntries   int           `yaml:"max_entries"`
	TTL          time.Duration `yaml:"ttl"`
	PreloadBatch int           `yaml:"preload_batch"`
	PreloadPause time.Duration `yaml:"preload_pause"`
}

// DefaultSessionConfig returns the default session cache tuning
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		MaxEntries:   50,
		TTL:          5 * time.Minute,
		PreloadBatch: 10,
		PreloadPause: 10 * time.Millisecond,
	}
}

// sessionItem represents an item in the session cache
type sessionItem struct {
	session   *types.CachedSession
	expiresAt time.Time // zero means never
	element   *list.Element
}

// sessionEntry is the value stored in the access list element
type sessionEntry struct {
	id string
}

// SessionCache is a bounded key/value store of fully resolved page
// sessions with least-recently-accessed eviction and lazy TTL expiry.
type SessionCache struct {
	mu sync.Mutex

	config *SessionConfig
	logger *zap.Logger

	items map[string]*sessionItem

	// accessList orders entries by access recency; front is most
	// recently accessed, eviction removes from the back.
	accessList *list.List

	stats types.CacheStats

	now func() time.Time
}

// NewSessionCache creates a new session cache
func NewSessionCache(config *SessionConfig, logger *zap.Logger) *SessionCache {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SessionCache{
		config:     config,
		logger:     logger,
		items:      make(map[string]*sessionItem),
		accessList: list.New(),
		stats:      types.CacheStats{Capacity: int64(config.MaxEntries)},
		now:        time.Now,
	}
}

// Get retrieves a session by id. Accessing an entry protects it from the
// next eviction. An expired entry is deleted and reported as a miss.
func (c *SessionCache) Get(id string) *types.CachedSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[id]
	if !exists {
		c.stats.Misses++
		c.updateHitRate()
		return nil
	}

	if c.isExpired(item) {
		c.removeItem(id)
		c.stats.Misses++
		c.updateHitRate()
		return nil
	}

	c.accessList.MoveToFront(item.element)
	c.stats.Hits++
	c.updateHitRate()

	return item.session
}

// Set stores a session, stamping fresh cache and expiry timestamps. An
// optional ttl overrides the configured default; TTLNever disables expiry.
func (c *SessionCache) Set(session *types.CachedSession, ttl ...time.Duration) {
	if session == nil || session.SessionID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	effective := c.config.TTL
	if len(ttl) > 0 {
		effective = ttl[0]
	}

	now := c.now()
	session.CachedAt = now
	var expiresAt time.Time
	if effective != TTLNever {
		expiresAt = now.Add(effective)
		session.ExpiresAt = expiresAt
	} else {
		session.ExpiresAt = time.Time{}
	}

	if item, exists := c.items[session.SessionID]; exists {
		item.session = session
		item.expiresAt = expiresAt
		c.accessList.MoveToFront(item.element)
		return
	}

	// Make room before inserting the new entry
	for len(c.items) >= c.config.MaxEntries && c.accessList.Len() > 0 {
		c.evictOldest()
	}

	element := c.accessList.PushFront(&sessionEntry{id: session.SessionID})
	c.items[session.SessionID] = &sessionItem{
		session:   session,
		expiresAt: expiresAt,
		element:   element,
	}
}

// Has reports whether a non-expired entry exists without touching access
// order. An expired entry is deleted and reported missing.
func (c *SessionCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[id]
	if !exists {
		return false
	}
	if c.isExpired(item) {
		c.removeItem(id)
		return false
	}
	return true
}

// Invalidate removes a single entry.
func (c *SessionCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeItem(id)
}

// Clear removes all entries.
func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*sessionItem)
	c.accessList.Init()
}

// Prefetch loads a session through the fetcher unless a fresh entry
// already exists.
func (c *SessionCache) Prefetch(ctx context.Context, id string, fetcher types.SessionFetcher) error {
	if c.Has(id) {
		return nil
	}

	session, err := fetcher.FetchSession(ctx, id)
	if err != nil {
		return err
	}

	c.Set(session)
	return nil
}

// PrefetchMany prefetches several sessions, swallowing individual
// failures.
func (c *SessionCache) PrefetchMany(ctx context.Context, ids []string, fetcher types.SessionFetcher) {
	for _, id := range ids {
		if err := c.Prefetch(ctx, id, fetcher); err != nil {
			c.logger.Debug("prefetch failed", zap.String("session_id", id), zap.Error(err))
		}
	}
}

// ProgressFunc reports preload progress after every item, successful or
// not.
type ProgressFunc func(done, total int, id string, err error)

// PreloadAll loads an entire manifest in fixed-size batches, pausing
// briefly between batches so preloading does not starve other work.
// Individual fetch failures are swallowed; preloaded entries never expire.
func (c *SessionCache) PreloadAll(ctx context.Context, manifest []string, fetcher types.SessionFetcher, onProgress ProgressFunc) {
	total := len(manifest)
	done := 0

	batchSize := c.config.PreloadBatch
	if batchSize <= 0 {
		batchSize = 10
	}

	var progressMu sync.Mutex

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, id := range manifest[start:end] {
			id := id
			group.Go(func() error {
				var fetchErr error
				if !c.Has(id) {
					session, err := fetcher.FetchSession(groupCtx, id)
					if err != nil {
						fetchErr = err
						c.logger.Debug("preload item failed", zap.String("session_id", id), zap.Error(err))
					} else {
						c.Set(session, TTLNever)
					}
				}

				progressMu.Lock()
				done++
				current := done
				progressMu.Unlock()

				if onProgress != nil {
					onProgress(current, total, id, fetchErr)
				}
				// Individual failures never abort the preload
				return nil
			})
		}
		_ = group.Wait()

		if end < total && c.config.PreloadPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.config.PreloadPause):
			}
		}
	}
}

// Export returns a copy of all live sessions keyed by id.
func (c *SessionCache) Export() map[string]*types.CachedSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*types.CachedSession, len(c.items))
	for id, item := range c.items {
		if c.isExpired(item) {
			continue
		}
		out[id] = item.session
	}
	return out
}

// Import inserts previously exported sessions, subject to the normal
// eviction and expiry rules.
func (c *SessionCache) Import(sessions map[string]*types.CachedSession) {
	for _, session := range sessions {
		c.Set(session)
	}
}

// Stats returns cache statistics. Size is computed on demand by
// serializing all entries.
func (c *SessionCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)

	var bytes int64
	for _, item := range c.items {
		if data, err := json.Marshal(item.session); err == nil {
			bytes += int64(len(data))
		}
	}
	stats.Size = bytes

	if stats.Capacity > 0 {
		stats.Utilization = float64(len(c.items)) / float64(stats.Capacity)
	}
	return stats
}

// Helper methods

func (c *SessionCache) isExpired(item *sessionItem) bool {
	if item.expiresAt.IsZero() {
		return false
	}
	return c.now().After(item.expiresAt)
}

func (c *SessionCache) removeItem(id string) {
	item, exists := c.items[id]
	if !exists {
		return
	}

	if item.element != nil {
		c.accessList.Remove(item.element)
	}
	delete(c.items, id)
}

func (c *SessionCache) evictOldest() {
	element := c.accessList.Back()
	if element == nil {
		return
	}

	entry := element.Value.(*sessionEntry)
	c.removeItem(entry.id)
	c.stats.Evictions++
}

func (c *SessionCache) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		c.stats.HitRate = float64(c.stats.Hits) / float64(total)
	}
}
