package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-search/strata/internal/model"
)

func TestShouldFetch(t *testing.T) {
	candidates := func(scores ...float64) []model.Candidate {
		out := make([]model.Candidate, 0, len(scores))
		for _, s := range scores {
			out = append(out, model.Candidate{Score: s})
		}
		return out
	}

	tests := []struct {
		name     string
		policy   FetchPolicy
		combined []model.Candidate
		want     bool
	}{
		{
			name:   "parallel always fetches",
			policy: FetchPolicy{Mode: model.FetchModeParallel, MinResults: 3, MinAvgScore: 0.55},
			want:   true,
		},
		{
			name:     "too few results",
			policy:   FetchPolicy{Mode: model.FetchModeOnLowConfidence, MinResults: 3, MinAvgScore: 0.55},
			combined: candidates(0.9, 0.9),
			want:     true,
		},
		{
			name:     "weak average",
			policy:   FetchPolicy{Mode: model.FetchModeOnLowConfidence, MinResults: 3, MinAvgScore: 0.55},
			combined: candidates(0.5, 0.5, 0.5),
			want:     true,
		},
		{
			name:     "enough strong results",
			policy:   FetchPolicy{Mode: model.FetchModeOnLowConfidence, MinResults: 3, MinAvgScore: 0.55},
			combined: candidates(0.8, 0.7, 0.6),
			want:     false,
		},
		{
			name:     "unknown mode never fetches",
			policy:   FetchPolicy{Mode: "bogus", MinResults: 3, MinAvgScore: 0.55},
			combined: nil,
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.policy.ShouldFetch(tt.combined))
		})
	}
}
