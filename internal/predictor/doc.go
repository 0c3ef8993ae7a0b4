/*
Package predictor implements the self-training navigation model.

The predictor observes navigation records and maintains three independent
signal sources:

  - a per-user transition matrix with multiplicative decay, so recent
    behavior dominates without unbounded growth
  - an hour-of-day visit histogram (never decayed)
  - an externally aggregated community snapshot, replaced wholesale on
    each update

Predict runs one scoring pass per source, producing typed signals
(HistorySignal, CommunitySignal, TimeSignal) that an explicit reducer
merges into one ranked candidate list per destination route. Overlapping
predictions combine as a confidence-weighted average, with the incoming
probability scaled by its source weight. Results are sorted by merged
probability, filtered by a configurable floor and truncated to a maximum
count. A route the model has never seen yields an empty list, never an
error.

Learned state can be exported and re-imported as a PredictorSnapshot for
persistence across reloads.
*/
package predictor
