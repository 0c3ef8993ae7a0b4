/*
Package cache provides the three bounded caches behind predictive
navigation.

SessionCache stores fully resolved page sessions keyed by session id, with
least-recently-accessed eviction and lazy TTL expiry. It also drives bulk
preloading: the manifest is processed in fixed-size concurrent batches with
a short pause between batches, individual failures are swallowed, and a
progress callback fires after every item.

SkeletonCache is the session cache's simpler sibling: route-addressed
placeholder content with FIFO eviction and a much longer default TTL.
GetWithSkeleton returns the placeholder synchronously while the
authoritative session resolves concurrently, so callers can render
instantly and swap in real data without blocking.

RenderCache holds fully rendered page output under both an entry limit and
a byte budget. Each entry carries the confidence of the prediction that
produced it; eviction picks the lowest confidence/(1+age) score, except
that entries marked stale by invalidation are evicted unconditionally.
Staleness is an explicit flag, distinct from TTL expiry, and is only
cleared by a re-render.

All expiry in this package is checked lazily on read rather than by
background timers; an expired entry found on any lookup path is deleted
before the miss is reported.
*/
package cache
