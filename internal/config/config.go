package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete engine configuration
type Configuration struct {
	Global        GlobalConfig        `yaml:"global"`
	Predictor     PredictorConfig     `yaml:"predictor"`
	SessionCache  SessionCacheConfig  `yaml:"session_cache"`
	SkeletonCache SkeletonCacheConfig `yaml:"skeleton_cache"`
	RenderCache   RenderCacheConfig   `yaml:"render_cache"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Community     CommunityConfig     `yaml:"community"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// PredictorConfig tunes the navigation predictor
type PredictorConfig struct {
	MaxPredictions       int     `yaml:"max_predictions"`
	ProbabilityFloor     float64 `yaml:"probability_floor"`
	DecayFactor          float64 `yaml:"decay_factor"`
	DecayPruneBelow      float64 `yaml:"decay_prune_below"`
	HistoryWeight        float64 `yaml:"history_weight"`
	CommunityWeight      float64 `yaml:"community_weight"`
	TimeWeight           float64 `yaml:"time_weight"`
	MaxRecords           int     `yaml:"max_records"`
	SampleSaturation     int     `yaml:"sample_saturation"`
	PopularitySaturation int64   `yaml:"popularity_saturation"`
}

// SessionCacheConfig tunes the session cache
type SessionCacheConfig struct {
	MaxEntries   int           `yaml:"max_entries"`
	TTL          time.Duration `yaml:"ttl"`
	PreloadBatch int           `yaml:"preload_batch"`
	PreloadPause time.Duration `yaml:"preload_pause"`
}

// SkeletonCacheConfig tunes the skeleton cache
type SkeletonCacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// RenderCacheConfig tunes the speculative render cache
type RenderCacheConfig struct {
	MaxEntries    int           `yaml:"max_entries"`
	MaxBytes      string        `yaml:"max_bytes"`
	StaleTTL      time.Duration `yaml:"stale_ttl"`
	MinConfidence float64       `yaml:"min_confidence"`
	HoverDelay    time.Duration `yaml:"hover_delay"`
}

// OrchestratorConfig tunes the navigation orchestrator
type OrchestratorConfig struct {
	PrefetchTopN        int           `yaml:"prefetch_top_n"`
	PrefetchThreshold   float64       `yaml:"prefetch_threshold"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout"`
	HistoryLimit        int           `yaml:"history_limit"`
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	BreakerMaxFailures  uint32        `yaml:"breaker_max_failures"`
	BreakerOpenDuration time.Duration `yaml:"breaker_open_duration"`
}

// CommunityConfig configures the community pattern feed
type CommunityConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	PatternKey      string        `yaml:"pattern_key"`
	SnapshotKey     string        `yaml:"snapshot_key"`
	Region          string        `yaml:"region"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel: "INFO",
			LogFile:  "",
		},
		Predictor: PredictorConfig{
			MaxPredictions:       5,
			ProbabilityFloor:     0.05,
			DecayFactor:          0.995,
			DecayPruneBelow:      0.01,
			HistoryWeight:        0.5,
			CommunityWeight:      0.3,
			TimeWeight:           0.2,
			MaxRecords:           1000,
			SampleSaturation:     10,
			PopularitySaturation: 100,
		},
		SessionCache: SessionCacheConfig{
			MaxEntries:   50,
			TTL:          5 * time.Minute,
			PreloadBatch: 10,
			PreloadPause: 10 * time.Millisecond,
		},
		SkeletonCache: SkeletonCacheConfig{
			MaxEntries: 100,
			TTL:        30 * time.Minute,
		},
		RenderCache: RenderCacheConfig{
			MaxEntries:    10,
			MaxBytes:      "4MB",
			StaleTTL:      time.Minute,
			MinConfidence: 0.5,
			HoverDelay:    100 * time.Millisecond,
		},
		Orchestrator: OrchestratorConfig{
			PrefetchTopN:        3,
			PrefetchThreshold:   0.3,
			FetchTimeout:        10 * time.Second,
			HistoryLimit:        100,
			BreakerEnabled:      true,
			BreakerMaxFailures:  5,
			BreakerOpenDuration: 30 * time.Second,
		},
		Community: CommunityConfig{
			Enabled:         false,
			PatternKey:      "patterns/aggregate.json",
			SnapshotKey:     "snapshots/predictor.json",
			Region:          "us-east-1",
			RefreshInterval: 15 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "prenav",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("PRENAV_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("PRENAV_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	if val := os.Getenv("PRENAV_SESSION_CACHE_ENTRIES"); val != "" {
		if entries, err := strconv.Atoi(val); err == nil {
			c.SessionCache.MaxEntries = entries
		}
	}
	if val := os.Getenv("PRENAV_SESSION_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.SessionCache.TTL = duration
		}
	}
	if val := os.Getenv("PRENAV_RENDER_CACHE_BYTES"); val != "" {
		c.RenderCache.MaxBytes = val
	}
	if val := os.Getenv("PRENAV_PREFETCH_THRESHOLD"); val != "" {
		if threshold, err := strconv.ParseFloat(val, 64); err == nil {
			c.Orchestrator.PrefetchThreshold = threshold
		}
	}

	if val := os.Getenv("PRENAV_COMMUNITY_ENABLED"); val != "" {
		c.Community.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("PRENAV_COMMUNITY_BUCKET"); val != "" {
		c.Community.Bucket = val
	}
	if val := os.Getenv("PRENAV_COMMUNITY_REGION"); val != "" {
		c.Community.Region = val
	}

	if val := os.Getenv("PRENAV_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Predictor.MaxPredictions <= 0 {
		return fmt.Errorf("max_predictions must be greater than 0")
	}
	if c.Predictor.DecayFactor <= 0 || c.Predictor.DecayFactor >= 1 {
		return fmt.Errorf("decay_factor must be in (0, 1)")
	}
	if c.Predictor.ProbabilityFloor < 0 || c.Predictor.ProbabilityFloor > 1 {
		return fmt.Errorf("probability_floor must be in [0, 1]")
	}
	if sum := c.Predictor.HistoryWeight + c.Predictor.CommunityWeight + c.Predictor.TimeWeight; sum > 1.0+1e-9 {
		return fmt.Errorf("signal weights must sum to at most 1, got %.3f", sum)
	}
	if c.Predictor.PopularitySaturation <= 0 {
		return fmt.Errorf("popularity_saturation must be greater than 0")
	}

	if c.SessionCache.MaxEntries <= 0 {
		return fmt.Errorf("session_cache max_entries must be greater than 0")
	}
	if c.SkeletonCache.MaxEntries <= 0 {
		return fmt.Errorf("skeleton_cache max_entries must be greater than 0")
	}
	if c.RenderCache.MaxEntries <= 0 {
		return fmt.Errorf("render_cache max_entries must be greater than 0")
	}
	if _, err := ParseSize(c.RenderCache.MaxBytes); err != nil {
		return fmt.Errorf("render_cache max_bytes: %w", err)
	}

	if c.Community.Enabled && c.Community.Bucket == "" {
		return fmt.Errorf("community bucket is required when the community feed is enabled")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// ParseSize parses a human-readable size string like "4MB" into bytes
func ParseSize(size string) (int64, error) {
	size = strings.TrimSpace(strings.ToUpper(size))
	if size == "" {
		return 0, fmt.Errorf("empty size string")
	}

	multipliers := []struct {
		suffix string
		factor int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(size, m.suffix) {
			numStr := strings.TrimSuffix(size, m.suffix)
			num, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", size, err)
			}
			return int64(num * float64(m.factor)), nil
		}
	}

	num, err := strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", size, err)
	}
	return num, nil
}
