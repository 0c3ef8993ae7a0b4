package navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/prenav/prenav/internal/cache"
	"github.com/prenav/prenav/internal/metrics"
	"github.com/prenav/prenav/internal/predictor"
	navErrors "github.com/prenav/prenav/pkg/errors"
	"github.com/prenav/prenav/pkg/types"
)

// Config tunes the navigation orchestrator
type Config struct {
	// PrefetchTopN is how many predictions are considered after each
	// navigation
	PrefetchTopN int `yaml:"prefetch_top_n"`

	// PrefetchThreshold gates session prefetch by predicted probability
	PrefetchThreshold float64 `yaml:"prefetch_threshold"`

	// MinConfidence gates predictor-driven prerendering
	MinConfidence float64 `yaml:"min_confidence"`

	// HoverDelay is the hover-intent debounce before prerendering
	HoverDelay time.Duration `yaml:"hover_delay"`

	// FetchTimeout bounds the authoritative session fetch
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// HistoryLimit bounds the navigation history kept in state
	HistoryLimit int `yaml:"history_limit"`

	// Circuit breaker settings for the session fetcher
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	BreakerMaxFailures  uint32        `yaml:"breaker_max_failures"`
	BreakerOpenDuration time.Duration `yaml:"breaker_open_duration"`
}

// DefaultConfig returns the default orchestrator tuning
func DefaultConfig() *Config {
	return &Config{
		PrefetchTopN:        3,
		PrefetchThreshold:   0.3,
		MinConfidence:       0.5,
		HoverDelay:          100 * time.Millisecond,
		FetchTimeout:        10 * time.Second,
		HistoryLimit:        100,
		BreakerEnabled:      true,
		BreakerMaxFailures:  5,
		BreakerOpenDuration: 30 * time.Second,
	}
}

// Subscriber receives navigation state changes.
type Subscriber func(state types.NavigationState)

// PrefetchOptions select which parts of a session a prefetch should warm.
type PrefetchOptions struct {
	Data     bool
	Presence bool
}

// Orchestrator composes the router, predictor and the three caches into
// the navigation engine. It owns navigation state, records every
// transition into the predictor, and speculatively prefetches the
// predictor's top candidates after each navigation.
type Orchestrator struct {
	mu sync.Mutex

	config *Config
	logger *zap.Logger

	router    types.Router
	fetcher   types.SessionFetcher
	renderer  types.Renderer
	predictor *predictor.Predictor
	sessions  *cache.SessionCache
	skeletons *cache.SkeletonCache
	renders   *cache.RenderCache
	collector *metrics.Collector

	breaker *gobreaker.CircuitBreaker
	flight  singleflight.Group

	state           types.NavigationState
	lastNavigatedAt time.Time

	subscribers map[string]Subscriber

	hoverTimers map[types.Route]*time.Timer
	seenVisible map[types.Route]bool

	now func() time.Time
}

// Options carries the orchestrator's collaborators.
type Options struct {
	Router    types.Router
	Fetcher   types.SessionFetcher
	Renderer  types.Renderer
	Predictor *predictor.Predictor
	Sessions  *cache.SessionCache
	Skeletons *cache.SkeletonCache
	Renders   *cache.RenderCache
	Collector *metrics.Collector
	Logger    *zap.Logger
}

// New creates a navigation orchestrator
func New(config *Config, opts Options) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		config:      config,
		logger:      logger,
		router:      opts.Router,
		fetcher:     opts.Fetcher,
		renderer:    opts.Renderer,
		predictor:   opts.Predictor,
		sessions:    opts.Sessions,
		skeletons:   opts.Skeletons,
		renders:     opts.Renders,
		collector:   opts.Collector,
		subscribers: make(map[string]Subscriber),
		hoverTimers: make(map[types.Route]*time.Timer),
		seenVisible: make(map[types.Route]bool),
		now:         time.Now,
	}

	if config.BreakerEnabled {
		o.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "session-fetcher",
			MaxRequests: 1,
			Timeout:     config.BreakerOpenDuration,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.BreakerMaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	return o
}

// NavigateOption adjusts a single navigation.
type NavigateOption func(*navigateOptions)

type navigateOptions struct {
	replace bool
	source  types.NavigationSource
}

// WithReplace overwrites the history tail instead of pushing.
func WithReplace() NavigateOption {
	return func(o *navigateOptions) { o.replace = true }
}

// WithSource tags the navigation with how it was initiated.
func WithSource(source types.NavigationSource) NavigateOption {
	return func(o *navigateOptions) { o.source = source }
}

// Navigate performs an authoritative navigation to the target path. An
// unroutable target is a caller error and is returned as such; fetch and
// render failures on this path also propagate. Speculative follow-up work
// (prediction prefetch) never does.
func (o *Orchestrator) Navigate(ctx context.Context, target string, opts ...NavigateOption) error {
	options := navigateOptions{source: types.SourceClick}
	for _, opt := range opts {
		opt(&options)
	}

	match := o.router.Match(target)
	if match == nil {
		return navErrors.NewError(navErrors.ErrCodeRouteUnresolved,
			fmt.Sprintf("no route matches %q", target)).
			WithComponent("navigator").
			WithOperation("navigate")
	}

	start := o.now()

	o.mu.Lock()
	o.state.IsNavigating = true
	o.mu.Unlock()
	o.notify()

	var navErr error
	defer func() {
		o.mu.Lock()
		o.state.IsNavigating = false
		o.mu.Unlock()
		o.notify()

		if o.collector != nil {
			o.collector.RecordNavigation(o.now().Sub(start), navErr == nil)
		}
	}()

	session, err := o.resolveSession(ctx, match.SessionID)
	if err != nil {
		navErr = err
		return err
	}

	if o.renderer != nil {
		if err := o.renderer.Render(ctx, session); err != nil {
			navErr = navErrors.Wrap(err, navErrors.ErrCodeInternalError, "render dispatch failed").
				WithComponent("navigator").
				WithOperation("navigate")
			return navErr
		}
	}

	record := o.commitState(target, options)

	o.predictor.Record(record)
	if o.renders != nil {
		o.renders.SetCurrentRoute(target)
	}

	o.logger.Debug("navigated",
		zap.String("from", record.From),
		zap.String("to", record.To),
		zap.String("source", string(record.Source)))

	// Predictions reflect the just-completed transition; prefetching them
	// is speculative and must never surface errors.
	o.prefetchPredictions(ctx, target)

	return nil
}

// resolveSession returns the session from cache, or fetches and caches
// it.
func (o *Orchestrator) resolveSession(ctx context.Context, sessionID string) (*types.CachedSession, error) {
	if session := o.sessions.Get(sessionID); session != nil {
		if o.collector != nil {
			o.collector.RecordCacheLookup("session", true)
		}
		return session, nil
	}
	if o.collector != nil {
		o.collector.RecordCacheLookup("session", false)
	}

	session, err := o.fetchSession(ctx, sessionID)
	if err != nil {
		return nil, navErrors.Wrap(err, navErrors.ErrCodeFetchFailed,
			fmt.Sprintf("session %q", sessionID)).
			WithComponent("navigator").
			WithOperation("navigate")
	}

	o.sessions.Set(session)
	return session, nil
}

// fetchSession runs the injected fetcher under the timeout and, when
// enabled, the circuit breaker.
func (o *Orchestrator) fetchSession(ctx context.Context, sessionID string) (*types.CachedSession, error) {
	if o.fetcher == nil {
		return nil, navErrors.NewError(navErrors.ErrCodeFetcherMissing, "no session fetcher configured")
	}

	if o.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.FetchTimeout)
		defer cancel()
	}

	if o.breaker == nil {
		return o.fetcher.FetchSession(ctx, sessionID)
	}

	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.fetcher.FetchSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.CachedSession), nil
}

// commitState updates current/previous/history and builds the transition
// record under the lock.
func (o *Orchestrator) commitState(target types.Route, options navigateOptions) types.NavigationRecord {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	from := o.state.Current

	var dwell time.Duration
	if !o.lastNavigatedAt.IsZero() {
		dwell = now.Sub(o.lastNavigatedAt)
	}
	o.lastNavigatedAt = now

	o.state.Previous = from
	o.state.Current = target

	if options.replace && len(o.state.History) > 0 {
		o.state.History[len(o.state.History)-1] = target
	} else {
		o.state.History = append(o.state.History, target)
	}
	if limit := o.config.HistoryLimit; limit > 0 && len(o.state.History) > limit {
		o.state.History = o.state.History[len(o.state.History)-limit:]
	}

	return types.NavigationRecord{
		From:      from,
		To:        target,
		Timestamp: now,
		Dwell:     dwell,
		Source:    options.source,
	}
}

// prefetchPredictions asks the predictor for top candidates and
// fire-and-forgets both session prefetch and speculative prerender for
// those above the thresholds.
func (o *Orchestrator) prefetchPredictions(ctx context.Context, route types.Route) {
	predictions := o.predictor.Predict(route)
	if o.collector != nil {
		o.collector.RecordPrediction(len(predictions) > 0)
	}
	if len(predictions) > o.config.PrefetchTopN {
		predictions = predictions[:o.config.PrefetchTopN]
	}

	for _, prediction := range predictions {
		if prediction.Probability >= o.config.PrefetchThreshold {
			go func(candidate types.PredictedRoute) {
				if err := o.Prefetch(ctx, candidate.Route, PrefetchOptions{Data: true}); err != nil {
					o.logger.Debug("speculative prefetch failed",
						zap.String("route", candidate.Route), zap.Error(err))
				}
			}(prediction)
		}

		if o.renders != nil && prediction.Confidence >= o.config.MinConfidence {
			go func(candidate types.PredictedRoute) {
				ok := o.renders.Prerender(ctx, candidate.Route, candidate.Probability)
				if o.collector != nil {
					o.collector.RecordPrerender("predictor", ok)
				}
			}(prediction)
		}
	}
}

// Prefetch warms the session cache for a route. Concurrent calls with the
// same compound key share one in-flight fetch.
func (o *Orchestrator) Prefetch(ctx context.Context, route types.Route, opts PrefetchOptions) error {
	match := o.router.Match(route)
	if match == nil {
		return navErrors.NewError(navErrors.ErrCodeRouteUnresolved,
			fmt.Sprintf("no route matches %q", route)).
			WithComponent("navigator").
			WithOperation("prefetch")
	}

	key := fmt.Sprintf("%s|data=%t|presence=%t", match.SessionID, opts.Data, opts.Presence)

	_, err, _ := o.flight.Do(key, func() (interface{}, error) {
		if o.sessions.Has(match.SessionID) {
			return nil, nil
		}

		session, err := o.fetchSession(ctx, match.SessionID)
		if err != nil {
			if o.collector != nil {
				o.collector.RecordPrefetch(false)
			}
			return nil, err
		}

		o.sessions.Set(session)
		if o.collector != nil {
			o.collector.RecordPrefetch(true)
		}
		return nil, nil
	})

	return err
}

// Predict exposes the predictor for the current collaborators.
func (o *Orchestrator) Predict(route types.Route) []types.PredictedRoute {
	return o.predictor.Predict(route)
}

// Subscribe registers a state-change subscriber and returns its token.
func (o *Orchestrator) Subscribe(subscriber Subscriber) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	token := uuid.NewString()
	o.subscribers[token] = subscriber
	return token
}

// Unsubscribe removes a subscriber by token.
func (o *Orchestrator) Unsubscribe(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.subscribers, token)
}

// notify delivers a state snapshot to every subscriber outside the lock.
func (o *Orchestrator) notify() {
	o.mu.Lock()
	state := o.snapshotLocked()
	subscribers := make([]Subscriber, 0, len(o.subscribers))
	for _, subscriber := range o.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	o.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(state)
	}
}

// GetState returns a copy of the navigation state.
func (o *Orchestrator) GetState() types.NavigationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() types.NavigationState {
	state := o.state
	state.History = append([]types.Route(nil), o.state.History...)
	return state
}

// EngineStats aggregates statistics across the engine's caches.
type EngineStats struct {
	Sessions  types.CacheStats  `json:"sessions"`
	Skeletons types.CacheStats  `json:"skeletons"`
	Renders   cache.RenderStats `json:"renders"`
}

// GetCacheStats returns statistics for all three caches and refreshes the
// exported gauges.
func (o *Orchestrator) GetCacheStats() EngineStats {
	stats := EngineStats{}
	if o.sessions != nil {
		stats.Sessions = o.sessions.Stats()
	}
	if o.skeletons != nil {
		stats.Skeletons = o.skeletons.Stats()
	}
	if o.renders != nil {
		stats.Renders = o.renders.Stats()
	}

	if o.collector != nil {
		o.collector.SetCacheGauges("session", stats.Sessions.Entries, stats.Sessions.Size)
		o.collector.SetCacheGauges("skeleton", stats.Skeletons.Entries, stats.Skeletons.Size)
		o.collector.SetCacheGauges("render", stats.Renders.Entries, stats.Renders.Bytes)
	}

	return stats
}

// PreloadAll bulk-loads a session manifest through the session cache.
func (o *Orchestrator) PreloadAll(ctx context.Context, manifest []string, onProgress cache.ProgressFunc) {
	if o.fetcher == nil {
		return
	}
	o.sessions.PreloadAll(ctx, manifest, o.fetcher, onProgress)
}

// Init runs initial predictor-driven prerendering for the entry route.
func (o *Orchestrator) Init(ctx context.Context, entryRoute types.Route) {
	o.mu.Lock()
	o.state.Current = entryRoute
	o.state.History = append(o.state.History, entryRoute)
	o.lastNavigatedAt = o.now()
	o.mu.Unlock()

	if o.renders != nil {
		o.renders.SetCurrentRoute(entryRoute)
	}
	o.prefetchPredictions(ctx, entryRoute)
}
