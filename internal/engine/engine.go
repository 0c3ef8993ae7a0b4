package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/prenav/prenav/internal/cache"
	"github.com/prenav/prenav/internal/community"
	"github.com/prenav/prenav/internal/config"
	"github.com/prenav/prenav/internal/metrics"
	"github.com/prenav/prenav/internal/navigator"
	"github.com/prenav/prenav/internal/predictor"
	"github.com/prenav/prenav/internal/router"
	"github.com/prenav/prenav/pkg/logging"
	"github.com/prenav/prenav/pkg/types"
)

// Options carries the application-supplied collaborators the engine cannot
// construct itself.
type Options struct {
	// Routes is the build-time route manifest.
	Routes []router.RouteDefinition

	// Fetcher loads authoritative sessions.
	Fetcher types.SessionFetcher

	// Renderer performs the actual content swap on navigation.
	Renderer types.Renderer

	// PageFetcher produces rendered markup for speculative prerendering.
	PageFetcher types.PageFetcher

	// Logger overrides the logger built from configuration.
	Logger *zap.Logger
}

// Engine assembles the router, predictor, caches and orchestrator from one
// configuration and manages their shared lifecycle.
type Engine struct {
	config *config.Configuration
	logger *zap.Logger

	router       *router.Router
	predictor    *predictor.Predictor
	sessions     *cache.SessionCache
	skeletons    *cache.SkeletonCache
	renders      *cache.RenderCache
	orchestrator *navigator.Orchestrator
	collector    *metrics.Collector
	loader       *community.Loader

	communityCancel context.CancelFunc
}

// New creates an engine from a validated configuration.
func New(ctx context.Context, cfg *config.Configuration, opts Options) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Global.LogLevel, cfg.Global.LogFile)
		if err != nil {
			return nil, err
		}
	}

	r := router.New()
	r.AddAll(opts.Routes)

	p := predictor.New(&predictor.Config{
		MaxPredictions:       cfg.Predictor.MaxPredictions,
		ProbabilityFloor:     cfg.Predictor.ProbabilityFloor,
		DecayFactor:          cfg.Predictor.DecayFactor,
		DecayPruneBelow:      cfg.Predictor.DecayPruneBelow,
		HistoryWeight:        cfg.Predictor.HistoryWeight,
		CommunityWeight:      cfg.Predictor.CommunityWeight,
		TimeWeight:           cfg.Predictor.TimeWeight,
		MaxRecords:           cfg.Predictor.MaxRecords,
		SampleSaturation:     cfg.Predictor.SampleSaturation,
		PopularitySaturation: cfg.Predictor.PopularitySaturation,
	}, logger)

	sessions := cache.NewSessionCache(&cache.SessionConfig{
		MaxEntries:   cfg.SessionCache.MaxEntries,
		TTL:          cfg.SessionCache.TTL,
		PreloadBatch: cfg.SessionCache.PreloadBatch,
		PreloadPause: cfg.SessionCache.PreloadPause,
	}, logger)

	skeletons := cache.NewSkeletonCache(&cache.SkeletonConfig{
		MaxEntries: cfg.SkeletonCache.MaxEntries,
		TTL:        cfg.SkeletonCache.TTL,
	}, logger)

	renderBytes, err := config.ParseSize(cfg.RenderCache.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("render cache byte budget: %w", err)
	}
	renders := cache.NewRenderCache(&cache.RenderConfig{
		MaxEntries: cfg.RenderCache.MaxEntries,
		MaxBytes:   renderBytes,
		StaleTTL:   cfg.RenderCache.StaleTTL,
	}, opts.PageFetcher, logger)

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Port:      cfg.Metrics.Port,
		Path:      cfg.Metrics.Path,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return nil, err
	}

	orchestrator := navigator.New(&navigator.Config{
		PrefetchTopN:        cfg.Orchestrator.PrefetchTopN,
		PrefetchThreshold:   cfg.Orchestrator.PrefetchThreshold,
		MinConfidence:       cfg.RenderCache.MinConfidence,
		HoverDelay:          cfg.RenderCache.HoverDelay,
		FetchTimeout:        cfg.Orchestrator.FetchTimeout,
		HistoryLimit:        cfg.Orchestrator.HistoryLimit,
		BreakerEnabled:      cfg.Orchestrator.BreakerEnabled,
		BreakerMaxFailures:  cfg.Orchestrator.BreakerMaxFailures,
		BreakerOpenDuration: cfg.Orchestrator.BreakerOpenDuration,
	}, navigator.Options{
		Router:    r,
		Fetcher:   opts.Fetcher,
		Renderer:  opts.Renderer,
		Predictor: p,
		Sessions:  sessions,
		Skeletons: skeletons,
		Renders:   renders,
		Collector: collector,
		Logger:    logger,
	})

	e := &Engine{
		config:       cfg,
		logger:       logger,
		router:       r,
		predictor:    p,
		sessions:     sessions,
		skeletons:    skeletons,
		renders:      renders,
		orchestrator: orchestrator,
		collector:    collector,
	}

	if cfg.Community.Enabled {
		loader, err := community.NewLoader(ctx, &community.Config{
			Bucket:          cfg.Community.Bucket,
			PatternKey:      cfg.Community.PatternKey,
			SnapshotKey:     cfg.Community.SnapshotKey,
			Region:          cfg.Community.Region,
			RefreshInterval: cfg.Community.RefreshInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("community feed: %w", err)
		}
		e.loader = loader
	}

	return e, nil
}

// Start brings up the metrics endpoint and, when configured, restores the
// predictor snapshot and begins community pattern refreshes.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.collector.Start(ctx); err != nil {
		return err
	}

	if e.loader != nil {
		if snapshot, err := e.loader.LoadSnapshot(ctx); err == nil {
			e.predictor.Import(*snapshot)
		} else {
			e.logger.Info("no predictor snapshot restored", zap.Error(err))
		}

		runCtx, cancel := context.WithCancel(context.Background())
		e.communityCancel = cancel
		go e.loader.Run(runCtx, e.predictor)
	}

	e.logger.Info("navigation engine started",
		zap.Int("routes", len(e.router.Patterns())),
		zap.Bool("community", e.loader != nil))
	return nil
}

// Stop persists the predictor snapshot, stops background refreshes and
// shuts down the metrics endpoint.
func (e *Engine) Stop(ctx context.Context) error {
	e.orchestrator.StopTriggers()

	if e.communityCancel != nil {
		e.communityCancel()
		e.communityCancel = nil
	}

	if e.loader != nil {
		if err := e.loader.SaveSnapshot(ctx, e.predictor.Export()); err != nil {
			e.logger.Warn("predictor snapshot save failed", zap.Error(err))
		}
	}

	err := e.collector.Stop(ctx)
	_ = e.logger.Sync()
	return err
}

// Orchestrator returns the navigation orchestrator.
func (e *Engine) Orchestrator() *navigator.Orchestrator {
	return e.orchestrator
}

// Collector returns the metrics collector.
func (e *Engine) Collector() *metrics.Collector {
	return e.collector
}

// Predictor returns the navigation predictor.
func (e *Engine) Predictor() *predictor.Predictor {
	return e.predictor
}

// Skeletons returns the skeleton cache.
func (e *Engine) Skeletons() *cache.SkeletonCache {
	return e.skeletons
}

// Renders returns the speculative render cache.
func (e *Engine) Renders() *cache.RenderCache {
	return e.renders
}
