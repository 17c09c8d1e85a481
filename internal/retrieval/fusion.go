package retrieval

import (
	"sort"
	"strings"

	"github.com/strata-search/strata/internal/model"
)

// Fusion merges per-tier ranked lists with weighted Reciprocal Rank
// Fusion: each candidate scores Σ weight[tier] / (rank + constant)
// over the tiers it appears in. Candidates present in several tiers
// are deduplicated by normalized ref and their contributions summed.
type Fusion struct {
	Weights  map[model.Tier]float64
	Constant float64
}

func NewFusion(weights map[model.Tier]float64, constant float64) *Fusion {
	if constant <= 0 {
		constant = 60
	}
	return &Fusion{Weights: weights, Constant: constant}
}

type fusedEntry struct {
	candidate model.Candidate
	fused     float64
	bestRaw   float64
	bestTier  model.Tier
	tiers     []model.Tier
}

// Fuse merges the three tier lists and returns the top k fused
// candidates plus per-tier input counts. Output ordering is
// deterministic for identical inputs: fused score desc, then best
// single-tier raw score desc, then tier trust order, then id.
func (f *Fusion) Fuse(tier1, tier2, tier3 []model.Candidate, k int) ([]model.FusedCandidate, model.RetrievalStats) {
	stats := model.RetrievalStats{
		Tier1Count: len(tier1),
		Tier2Count: len(tier2),
		Tier3Count: len(tier3),
	}
	entries := make(map[string]*fusedEntry)
	var order []string

	merge := func(list []model.Candidate, tier model.Tier) {
		weight := f.Weights[tier]
		for i, c := range list {
			contribution := weight / (float64(i+1) + f.Constant)
			key := normalizeRef(c.Ref)
			entry, ok := entries[key]
			if !ok {
				entry = &fusedEntry{candidate: c, bestRaw: c.Score, bestTier: tier}
				entries[key] = entry
				order = append(order, key)
			}
			entry.fused += contribution
			entry.tiers = append(entry.tiers, tier)
			if c.Score > entry.bestRaw {
				entry.bestRaw = c.Score
			}
			// Keep the representative from the most trusted tier.
			if tier < entry.bestTier {
				entry.bestTier = tier
				entry.candidate = c
			}
		}
	}
	merge(tier1, model.TierCorpus)
	merge(tier2, model.TierKnowledge)
	merge(tier3, model.TierLive)

	fused := make([]model.FusedCandidate, 0, len(order))
	for _, key := range order {
		entry := entries[key]
		fused = append(fused, model.FusedCandidate{
			Candidate:  entry.candidate,
			FusedScore: entry.fused,
			Tiers:      entry.tiers,
		})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		ri, rj := entries[normalizeRef(fused[i].Ref)], entries[normalizeRef(fused[j].Ref)]
		if ri.bestRaw != rj.bestRaw {
			return ri.bestRaw > rj.bestRaw
		}
		if ri.bestTier != rj.bestTier {
			return ri.bestTier < rj.bestTier
		}
		return fused[i].ID < fused[j].ID
	})
	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}
	return fused, stats
}

// normalizeRef collapses the candidate identities that should count as
// one document: scheme and trailing slash are insignificant for URLs.
func normalizeRef(ref string) string {
	ref = strings.ToLower(strings.TrimSpace(ref))
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	return strings.TrimRight(ref, "/")
}
