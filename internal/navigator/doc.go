/*
Package navigator composes the router, predictor and caches into the
navigation orchestrator.

Navigate is the only authoritative path: it resolves the target through
the router (an unroutable target is an error), obtains the session from
the cache or the breaker-wrapped fetcher, dispatches to the rendering
layer, commits current/previous/history, records the transition into the
predictor and finally fires speculative prefetches for the predictor's top
candidates. IsNavigating is true exactly for the duration of the call and
subscribers are notified on both edges, including on failure.

Everything else is speculative and isolated: prediction-driven prefetch
and prerender, hover-intent and visibility triggers all swallow failures,
which only reduce future cache-hit probability. Concurrent prefetches for
the same session and option flags share one in-flight fetch through
singleflight.
*/
package navigator
