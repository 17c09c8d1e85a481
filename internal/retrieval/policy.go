package retrieval

import (
	"github.com/strata-search/strata/internal/model"
)

// FetchPolicy decides whether the live tier runs for a query. In
// parallel mode it always runs; in on_low_confidence mode it runs only
// when the combined tier-1/tier-2 results are too few or too weak.
// The thresholds are operational tuning knobs, not algorithm constants.
type FetchPolicy struct {
	Mode        string
	MinResults  int
	MinAvgScore float64
}

func (p FetchPolicy) ShouldFetch(combined []model.Candidate) bool {
	switch p.Mode {
	case model.FetchModeParallel:
		return true
	case model.FetchModeOnLowConfidence:
		if len(combined) < p.MinResults {
			return true
		}
		var sum float64
		for _, c := range combined {
			sum += c.Score
		}
		return sum/float64(len(combined)) < p.MinAvgScore
	}
	return false
}
