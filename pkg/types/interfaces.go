package types

import "context"

// RouteMatch is the result of resolving a URL path against the route
// manifest.
type RouteMatch struct {
	Pattern   string            `json:"pattern"`
	SessionID string            `json:"session_id"`
	Params    map[string]string `json:"params"`
}

// Router maps a URL path to a logical page. A nil result means the path is
// unroutable.
type Router interface {
	Match(path string) *RouteMatch
}

// SessionFetcher loads the authoritative session for a session id.
type SessionFetcher interface {
	FetchSession(ctx context.Context, sessionID string) (*CachedSession, error)
}

// SessionFetcherFunc adapts a function to the SessionFetcher interface.
type SessionFetcherFunc func(ctx context.Context, sessionID string) (*CachedSession, error)

func (f SessionFetcherFunc) FetchSession(ctx context.Context, sessionID string) (*CachedSession, error) {
	return f(ctx, sessionID)
}

// PageFetcher produces rendered page markup for a route, used by the
// speculative render cache.
type PageFetcher interface {
	FetchPage(ctx context.Context, route Route) (string, error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc func(ctx context.Context, route Route) (string, error)

func (f PageFetcherFunc) FetchPage(ctx context.Context, route Route) (string, error) {
	return f(ctx, route)
}

// Renderer consumes a resolved session and performs the actual content
// swap. The engine only dispatches to it; it never renders itself.
type Renderer interface {
	Render(ctx context.Context, session *CachedSession) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, session *CachedSession) error

func (f RendererFunc) Render(ctx context.Context, session *CachedSession) error {
	return f(ctx, session)
}

// PatternSource supplies aggregated cross-user navigation patterns.
type PatternSource interface {
	Fetch(ctx context.Context) (map[Route]CommunityPattern, error)
}
