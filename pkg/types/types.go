package types

import (
	"encoding/json"
	"time"
)

// Route is a logical page path like "/blog/hello-world".
type Route = string

// NavigationSource identifies how a navigation was initiated.
type NavigationSource string

const (
	SourceClick   NavigationSource = "click"
	SourceBack    NavigationSource = "back"
	SourceForward NavigationSource = "forward"
	SourceDirect  NavigationSource = "direct"
)

// NavigationRecord is one observed transition between routes.
// Records are immutable once created.
type NavigationRecord struct {
	From      Route            `json:"from"`
	To        Route            `json:"to"`
	Timestamp time.Time        `json:"timestamp"`
	Dwell     time.Duration    `json:"dwell"`
	Source    NavigationSource `json:"source"`
}

// PredictionReason identifies which signal produced a prediction.
type PredictionReason string

const (
	ReasonHistory   PredictionReason = "history"
	ReasonCommunity PredictionReason = "community"
	ReasonTime      PredictionReason = "time"
)

// PredictedRoute is a ranked candidate for the next navigation.
// Probability and Confidence are both in [0,1].
type PredictedRoute struct {
	Route       Route            `json:"route"`
	Probability float64          `json:"probability"`
	Reason      PredictionReason `json:"reason"`
	Confidence  float64          `json:"confidence"`
}

// CommunityNext is one aggregated next-route observation.
type CommunityNext struct {
	Route Route `json:"route"`
	Count int64 `json:"count"`
}

// CommunityPattern is an externally aggregated navigation pattern for one
// route, merged wholesale into the predictor.
type CommunityPattern struct {
	Route        Route           `json:"route"`
	Popularity   int64           `json:"popularity"`
	AvgTimeSpent time.Duration   `json:"avg_time_spent"`
	NextRoutes   []CommunityNext `json:"next_routes"`
}

// CachedSession is the fully resolved page data for one route.
type CachedSession struct {
	SessionID     string          `json:"session_id"`
	Route         Route           `json:"route"`
	Tree          json.RawMessage `json:"tree"`
	Data          json.RawMessage `json:"data,omitempty"`
	SchemaVersion int             `json:"schema_version"`
	CachedAt      time.Time       `json:"cached_at"`
	ExpiresAt     time.Time       `json:"expires_at,omitempty"`
}

// CachedSkeleton is a lightweight placeholder render for a route, cached
// independently of the full session.
type CachedSkeleton struct {
	Route     Route     `json:"route"`
	HTML      string    `json:"html"`
	CSS       string    `json:"css,omitempty"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// PreRenderedPage is fully rendered page output cached ahead of navigation.
// Stale is set by invalidation and only cleared by a re-render.
type PreRenderedPage struct {
	Route        Route     `json:"route"`
	HTML         string    `json:"html"`
	PrefetchedAt time.Time `json:"prefetched_at"`
	Confidence   float64   `json:"confidence"`
	Stale        bool      `json:"stale"`
	Size         int64     `json:"size"`
}

// NavigationState is the orchestrator's view of where the user is.
type NavigationState struct {
	Current      Route   `json:"current"`
	Previous     Route   `json:"previous"`
	History      []Route `json:"history"`
	IsNavigating bool    `json:"is_navigating"`
}

// CacheStats represents cache performance statistics.
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Entries     int     `json:"entries"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// PredictorSnapshot is a serializable export of the predictor's learned
// state, suitable for persistence across reloads.
type PredictorSnapshot struct {
	Transitions map[Route]map[Route]float64 `json:"transitions"`
	TimeOfDay   map[Route]map[int]int64     `json:"time_of_day"`
	ExportedAt  time.Time                   `json:"exported_at"`
}
