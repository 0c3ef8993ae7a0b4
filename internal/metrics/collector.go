package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "prenav",
	}
}

// Collector exposes engine counters and gauges to Prometheus.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	navigationCounter *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	cacheEvictions    *prometheus.CounterVec
	cacheEntries      *prometheus.GaugeVec
	cacheBytes        *prometheus.GaugeVec
	prefetchCounter   *prometheus.CounterVec
	prerenderCounter  *prometheus.CounterVec
	predictionCounter *prometheus.CounterVec
	navigationLatency prometheus.Histogram

	server *http.Server
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	registry := prometheus.NewRegistry()
	collector := &Collector{
		config:   config,
		registry: registry,
	}

	ns := config.Namespace

	collector.navigationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "navigations_total",
		Help:      "Total navigations by outcome",
	}, []string{"status"})

	collector.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	collector.cacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "cache_evictions_total",
		Help:      "Cache evictions by cache",
	}, []string{"cache"})

	collector.cacheEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "cache_entries",
		Help:      "Current cache entry count by cache",
	}, []string{"cache"})

	collector.cacheBytes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "cache_bytes",
		Help:      "Current cached bytes by cache",
	}, []string{"cache"})

	collector.prefetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "prefetches_total",
		Help:      "Session prefetches by outcome",
	}, []string{"status"})

	collector.prerenderCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "prerenders_total",
		Help:      "Speculative prerenders by trigger and outcome",
	}, []string{"trigger", "status"})

	collector.predictionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "predictions_total",
		Help:      "Prediction requests by whether candidates were produced",
	}, []string{"outcome"})

	collector.navigationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "navigation_duration_seconds",
		Help:      "Navigation transaction latency",
		Buckets:   prometheus.DefBuckets,
	})

	for _, c := range []prometheus.Collector{
		collector.navigationCounter,
		collector.cacheLookups,
		collector.cacheEvictions,
		collector.cacheEntries,
		collector.cacheBytes,
		collector.prefetchCounter,
		collector.prerenderCounter,
		collector.predictionCounter,
		collector.navigationLatency,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return collector, nil
}

// Handler returns the Prometheus scrape handler.
func (c *Collector) Handler() http.Handler {
	if c.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Start serves the metrics endpoint in the background.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordNavigation records one navigation transaction.
func (c *Collector) RecordNavigation(duration time.Duration, success bool) {
	if c.registry == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.navigationCounter.WithLabelValues(status).Inc()
	c.navigationLatency.Observe(duration.Seconds())
}

// RecordCacheLookup records a hit or miss for one cache.
func (c *Collector) RecordCacheLookup(cache string, hit bool) {
	if c.registry == nil {
		return
	}
	result := "hit"
	if !hit {
		result = "miss"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

// SetCacheGauges updates the entry and byte gauges for one cache.
func (c *Collector) SetCacheGauges(cache string, entries int, bytes int64) {
	if c.registry == nil {
		return
	}
	c.cacheEntries.WithLabelValues(cache).Set(float64(entries))
	c.cacheBytes.WithLabelValues(cache).Set(float64(bytes))
}

// RecordEviction counts an eviction for one cache.
func (c *Collector) RecordEviction(cache string) {
	if c.registry == nil {
		return
	}
	c.cacheEvictions.WithLabelValues(cache).Inc()
}

// RecordPrefetch records a session prefetch outcome.
func (c *Collector) RecordPrefetch(success bool) {
	if c.registry == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.prefetchCounter.WithLabelValues(status).Inc()
}

// RecordPrerender records a speculative prerender outcome by trigger.
func (c *Collector) RecordPrerender(trigger string, success bool) {
	if c.registry == nil {
		return
	}
	status := "success"
	if !success {
		status = "skipped"
	}
	c.prerenderCounter.WithLabelValues(trigger, status).Inc()
}

// RecordPrediction records whether a prediction request produced
// candidates.
func (c *Collector) RecordPrediction(produced bool) {
	if c.registry == nil {
		return
	}
	outcome := "candidates"
	if !produced {
		outcome = "empty"
	}
	c.predictionCounter.WithLabelValues(outcome).Inc()
}
