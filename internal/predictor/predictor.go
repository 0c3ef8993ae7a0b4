package predictor

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prenav/prenav/pkg/types"
)

// Config tunes the navigation predictor
type Config struct {
	// MaxPredictions caps the number of candidates returned by Predict
	MaxPredictions int `yaml:"max_predictions"`

	// ProbabilityFloor filters out candidates below this merged probability
	ProbabilityFloor float64 `yaml:"probability_floor"`

	// DecayFactor multiplies every transition count after each Record
	DecayFactor float64 `yaml:"decay_factor"`

	// DecayPruneBelow removes transition counts that decay below this value
	DecayPruneBelow float64 `yaml:"decay_prune_below"`

	// Signal weights applied when merging overlapping predictions.
	// Must sum to at most 1.
	HistoryWeight   float64 `yaml:"history_weight"`
	CommunityWeight float64 `yaml:"community_weight"`
	TimeWeight      float64 `yaml:"time_weight"`

	// MaxRecords bounds the retained navigation history
	MaxRecords int `yaml:"max_records"`

	// SampleSaturation is the sample count at which history confidence
	// reaches 1.0
	SampleSaturation int `yaml:"sample_saturation"`

	// PopularitySaturation is the community popularity at which community
	// confidence reaches 1.0
	PopularitySaturation int64 `yaml:"popularity_saturation"`
}

// DefaultConfig returns the default predictor tuning
func DefaultConfig() *Config {
	return &Config{
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
	}
}

// Predictor learns navigation behavior and emits ranked candidates for the
// next route. It merges three independent signal sources: the user's own
// transition history, community-aggregated patterns, and time-of-day visit
// counts.
type Predictor struct {
	mu sync.RWMutex

	config *Config
	logger *zap.Logger

	// transitions maps origin route -> destination route -> decayed weight
	transitions map[types.Route]map[types.Route]float64

	// timeOfDay maps destination route -> hour of day -> visit count.
	// Never decayed.
	timeOfDay map[types.Route]map[int]int64

	// community is the latest externally supplied snapshot, replaced
	// wholesale on update
	community map[types.Route]types.CommunityPattern

	// records is the bounded navigation history, oldest first
	records []types.NavigationRecord

	now func() time.Time
}

// New creates a navigation predictor
func New(config *Config, logger *zap.Logger) *Predictor {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Predictor{
		config:      config,
		logger:      logger,
		transitions: make(map[types.Route]map[types.Route]float64),
		timeOfDay:   make(map[types.Route]map[int]int64),
		community:   make(map[types.Route]types.CommunityPattern),
		records:     make([]types.NavigationRecord, 0, config.MaxRecords),
		now:         time.Now,
	}
}

// Record registers one observed navigation. It always succeeds; decay is
// applied to the whole transition matrix as a side effect.
func (p *Predictor) Record(record types.NavigationRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = append(p.records, record)
	if len(p.records) > p.config.MaxRecords {
		p.records = p.records[len(p.records)-p.config.MaxRecords:]
	}

	row, ok := p.transitions[record.From]
	if !ok {
		row = make(map[types.Route]float64)
		p.transitions[record.From] = row
	}
	row[record.To]++

	hour := record.Timestamp.Hour()
	hours, ok := p.timeOfDay[record.To]
	if !ok {
		hours = make(map[int]int64)
		p.timeOfDay[record.To] = hours
	}
	hours[hour]++

	p.decay()
}

// decay multiplies every matrix cell by the decay factor and prunes cells
// below the floor. Empty origin rows are removed entirely.
func (p *Predictor) decay() {
	for from, row := range p.transitions {
		for to, weight := range row {
			weight *= p.config.DecayFactor
			if weight < p.config.DecayPruneBelow {
				delete(row, to)
			} else {
				row[to] = weight
			}
		}
		if len(row) == 0 {
			delete(p.transitions, from)
		}
	}
}

// Predict returns ranked candidates for the next route after currentRoute,
// sorted descending by probability, filtered by the probability floor and
// truncated to the configured maximum. An unknown route yields an empty
// slice, never an error.
func (p *Predictor) Predict(currentRoute types.Route) []types.PredictedRoute {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Predictions are always relative to a known origin. A route with
	// neither a transition row nor a community pattern yields nothing,
	// even when the hour histogram could speak.
	if _, known := p.transitions[currentRoute]; !known {
		if _, known = p.community[currentRoute]; !known {
			return nil
		}
	}

	signals := make([]Signal, 0, 8)
	signals = append(signals, p.historySignals(currentRoute)...)
	signals = append(signals, p.communitySignals(currentRoute)...)
	signals = append(signals, p.timeSignals()...)

	merged := mergeSignals(p.config, signals)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Probability > merged[j].Probability
	})

	filtered := merged[:0]
	for _, candidate := range merged {
		if candidate.Probability >= p.config.ProbabilityFloor {
			filtered = append(filtered, candidate)
		}
	}

	if len(filtered) > p.config.MaxPredictions {
		filtered = filtered[:p.config.MaxPredictions]
	}

	return filtered
}

// UpdateCommunityPatterns replaces the stored community snapshot wholesale.
func (p *Predictor) UpdateCommunityPatterns(patterns map[types.Route]types.CommunityPattern) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if patterns == nil {
		patterns = make(map[types.Route]types.CommunityPattern)
	}
	p.community = patterns

	p.logger.Debug("community patterns updated", zap.Int("routes", len(patterns)))
}

// Export returns a serializable snapshot of the learned state.
func (p *Predictor) Export() types.PredictorSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := types.PredictorSnapshot{
		Transitions: make(map[types.Route]map[types.Route]float64, len(p.transitions)),
		TimeOfDay:   make(map[types.Route]map[int]int64, len(p.timeOfDay)),
		ExportedAt:  p.now(),
	}

	for from, row := range p.transitions {
		copied := make(map[types.Route]float64, len(row))
		for to, weight := range row {
			copied[to] = weight
		}
		snapshot.Transitions[from] = copied
	}

	for route, hours := range p.timeOfDay {
		copied := make(map[int]int64, len(hours))
		for hour, count := range hours {
			copied[hour] = count
		}
		snapshot.TimeOfDay[route] = copied
	}

	return snapshot
}

// Import replaces the learned state with a previously exported snapshot.
func (p *Predictor) Import(snapshot types.PredictorSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.transitions = make(map[types.Route]map[types.Route]float64, len(snapshot.Transitions))
	for from, row := range snapshot.Transitions {
		copied := make(map[types.Route]float64, len(row))
		for to, weight := range row {
			copied[to] = weight
		}
		p.transitions[from] = copied
	}

	p.timeOfDay = make(map[types.Route]map[int]int64, len(snapshot.TimeOfDay))
	for route, hours := range snapshot.TimeOfDay {
		copied := make(map[int]int64, len(hours))
		for hour, count := range hours {
			copied[hour] = count
		}
		p.timeOfDay[route] = copied
	}

	p.logger.Info("predictor snapshot imported",
		zap.Int("origins", len(p.transitions)),
		zap.Int("time_routes", len(p.timeOfDay)))
}

// TransitionWeight reports the current decayed weight of one matrix cell.
// A missing cell reports zero.
func (p *Predictor) TransitionWeight(from, to types.Route) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	row, ok := p.transitions[from]
	if !ok {
		return 0
	}
	return row[to]
}

// Records returns a copy of the bounded navigation history, oldest first.
func (p *Predictor) Records() []types.NavigationRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]types.NavigationRecord, len(p.records))
	copy(out, p.records)
	return out
}
