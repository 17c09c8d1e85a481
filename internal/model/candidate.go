package model

// Tier identifies which evidence source a candidate came from.
// Lower numbers are more trusted.
type Tier int

const (
	TierCorpus    Tier = 1
	TierKnowledge Tier = 2
	TierLive      Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierCorpus:
		return "corpus"
	case TierKnowledge:
		return "knowledge"
	case TierLive:
		return "live"
	}
	return "unknown"
}

// Candidate is the shape shared by all three tiers. Ref is the
// candidate's normalized identity: a source path for corpus chunks, a
// URL for cached or live content.
type Candidate struct {
	ID       string  `json:"id"`
	Ref      string  `json:"ref"`
	Text     string  `json:"text"`
	Tier     Tier    `json:"tier"`
	Score    float64 `json:"score"`
	Citation string  `json:"citation"`
}

// FusedCandidate is a candidate after rank fusion, annotated with the
// tiers that contributed to it.
type FusedCandidate struct {
	Candidate
	FusedScore float64 `json:"fused_score"`
	Tiers      []Tier  `json:"tiers"`
}
