package predictor

import (
	"math"

	"github.com/prenav/prenav/pkg/types"
)

// Signal is one scored candidate produced by a single prediction pass.
// The three concrete signal types form a tagged union so the merge reducer
// can weight each source explicitly instead of duck-typing the inputs.
type Signal interface {
	candidate() types.PredictedRoute
	weight(config *Config) float64
}

// HistorySignal is produced from the user's own transition matrix.
type HistorySignal struct {
	Route       types.Route
	Probability float64
	Confidence  float64
}

func (s HistorySignal) candidate() types.PredictedRoute {
	return types.PredictedRoute{
		Route:       s.Route,
		Probability: s.Probability,
		Reason:      types.ReasonHistory,
		Confidence:  s.Confidence,
	}
}

func (s HistorySignal) weight(config *Config) float64 { return config.HistoryWeight }

// CommunitySignal is produced from the aggregated community snapshot.
type CommunitySignal struct {
	Route       types.Route
	Probability float64
	Confidence  float64
}

func (s CommunitySignal) candidate() types.PredictedRoute {
	return types.PredictedRoute{
		Route:       s.Route,
		Probability: s.Probability,
		Reason:      types.ReasonCommunity,
		Confidence:  s.Confidence,
	}
}

func (s CommunitySignal) weight(config *Config) float64 { return config.CommunityWeight }

// TimeSignal is produced from the hour-of-day histogram.
type TimeSignal struct {
	Route       types.Route
	Probability float64
	Confidence  float64
}

func (s TimeSignal) candidate() types.PredictedRoute {
	return types.PredictedRoute{
		Route:       s.Route,
		Probability: s.Probability,
		Reason:      types.ReasonTime,
		Confidence:  s.Confidence,
	}
}

func (s TimeSignal) weight(config *Config) float64 { return config.TimeWeight }

// historySignals reads the transition matrix row for the current route.
// Probability is the share of outgoing weight; confidence saturates as the
// row's total sample size approaches SampleSaturation.
func (p *Predictor) historySignals(currentRoute types.Route) []Signal {
	row, ok := p.transitions[currentRoute]
	if !ok || len(row) == 0 {
		return nil
	}

	total := 0.0
	for _, weight := range row {
		total += weight
	}
	if total <= 0 {
		return nil
	}

	confidence := math.Min(1, total/float64(p.config.SampleSaturation))

	signals := make([]Signal, 0, len(row))
	for route, weight := range row {
		signals = append(signals, HistorySignal{
			Route:       route,
			Probability: weight / total,
			Confidence:  confidence,
		})
	}
	return signals
}

// communitySignals reads the community snapshot's next routes for the
// current route. Confidence scales with the pattern's popularity.
func (p *Predictor) communitySignals(currentRoute types.Route) []Signal {
	pattern, ok := p.community[currentRoute]
	if !ok || len(pattern.NextRoutes) == 0 {
		return nil
	}

	var total int64
	for _, next := range pattern.NextRoutes {
		total += next.Count
	}
	if total <= 0 {
		return nil
	}

	confidence := math.Min(1, float64(pattern.Popularity)/float64(p.config.PopularitySaturation))

	signals := make([]Signal, 0, len(pattern.NextRoutes))
	for _, next := range pattern.NextRoutes {
		signals = append(signals, CommunitySignal{
			Route:       next.Route,
			Probability: float64(next.Count) / float64(total),
			Confidence:  confidence,
		})
	}
	return signals
}

// timeSignals compares each route's visit count for the current hour
// against the hour's maximum across all routes. Confidence scales with the
// absolute count.
func (p *Predictor) timeSignals() []Signal {
	hour := p.now().Hour()

	var maxCount int64
	for _, hours := range p.timeOfDay {
		if count := hours[hour]; count > maxCount {
			maxCount = count
		}
	}
	if maxCount == 0 {
		return nil
	}

	var signals []Signal
	for route, hours := range p.timeOfDay {
		count := hours[hour]
		if count == 0 {
			continue
		}
		signals = append(signals, TimeSignal{
			Route:       route,
			Probability: float64(count) / float64(maxCount),
			Confidence:  math.Min(1, float64(count)/float64(p.config.SampleSaturation)),
		})
	}
	return signals
}

// mergeSignals reduces all signals into one candidate per destination
// route. The first signal for a route enters unscaled; subsequent signals
// fold in as a confidence-weighted average with the incoming probability
// scaled by its source weight. The averaging uses the existing candidate's
// confidence from before the update, then confidence becomes the max of the
// two and the reason follows the higher-confidence contributor.
func mergeSignals(config *Config, signals []Signal) []types.PredictedRoute {
	merged := make(map[types.Route]types.PredictedRoute, len(signals))

	for _, signal := range signals {
		incoming := signal.candidate()

		existing, ok := merged[incoming.Route]
		if !ok {
			merged[incoming.Route] = incoming
			continue
		}

		scaled := incoming.Probability * signal.weight(config)
		oldConfidence := existing.Confidence
		denom := oldConfidence + incoming.Confidence
		if denom > 0 {
			existing.Probability = (existing.Probability*oldConfidence + scaled*incoming.Confidence) / denom
		}
		if incoming.Confidence > oldConfidence {
			existing.Reason = incoming.Reason
		}
		existing.Confidence = math.Max(oldConfidence, incoming.Confidence)

		merged[incoming.Route] = existing
	}

	out := make([]types.PredictedRoute, 0, len(merged))
	for _, candidate := range merged {
		out = append(out, candidate)
	}
	return out
}
