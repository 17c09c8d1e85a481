package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/ai"
	"github.com/strata-search/strata/internal/config"
	"github.com/strata-search/strata/internal/embedding"
	"github.com/strata-search/strata/internal/model"
	appErr "github.com/strata-search/strata/internal/pkg/errors"
)

type CorpusSearcher interface {
	Search(ctx context.Context, queryVec []float32, queryText string, k int) ([]model.Candidate, error)
}

type KnowledgeTier interface {
	Search(ctx context.Context, queryVec []float32, k int) ([]model.Candidate, error)
	Upsert(ctx context.Context, content, url string, trust float64) (*model.CacheEntry, bool, error)
}

type ExternalFetcher interface {
	Fetch(ctx context.Context, queryText string) ([]FetchedItem, error)
}

// Engine owns one query's journey through the tiers: embed, answer
// cache fast path, concurrent tier-1/tier-2 search, policy-gated live
// fetch, fusion, optional answer generation, answer cache write-back.
// All collaborators are held explicitly; there is no package state.
type Engine struct {
	embedder   queryEmbedder
	corpus     CorpusSearcher
	knowledge  KnowledgeTier
	fetcher    ExternalFetcher
	answers    *AnswerCache
	generator  ai.IGenerator
	fusion     *Fusion
	cfg        config.RetrievalConfig
	fetchTrust float64
}

func NewEngine(
	embedder queryEmbedder,
	corpus CorpusSearcher,
	knowledge KnowledgeTier,
	fetcher ExternalFetcher,
	answers *AnswerCache,
	generator ai.IGenerator,
	cfg config.RetrievalConfig,
	fetchTrust float64,
) *Engine {
	weights := map[model.Tier]float64{
		model.TierCorpus:    cfg.TierWeights.Corpus,
		model.TierKnowledge: cfg.TierWeights.Knowledge,
		model.TierLive:      cfg.TierWeights.Live,
	}
	return &Engine{
		embedder:   embedder,
		corpus:     corpus,
		knowledge:  knowledge,
		fetcher:    fetcher,
		answers:    answers,
		generator:  generator,
		fusion:     NewFusion(weights, cfg.RRFConstant),
		cfg:        cfg,
		fetchTrust: fetchTrust,
	}
}

type tierResult struct {
	tier       model.Tier
	candidates []model.Candidate
	err        error
}

func (e *Engine) Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	text := strings.TrimSpace(req.QueryText)
	if text == "" {
		return nil, appErr.ErrInvalid
	}
	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", text))

	queryVec, err := e.embedder.Embed(ctx, text, req.EmbedderID, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbedderUnavailable, err)
	}

	if req.UseCache && e.answers != nil {
		if entry, ok := e.answers.Get(queryVec); ok {
			logger.Debug("answer cache hit")
			stats := entry.Stats
			stats.CacheHit = true
			return buildResponse(entry.Answer, entry.Sources, stats), nil
		}
	}

	mode := req.FetchMode
	if mode == "" {
		mode = e.cfg.FetchMode
	}
	fetchEnabled := req.EnableExternalFetch && e.fetcher != nil
	policy := FetchPolicy{
		Mode:        mode,
		MinResults:  e.cfg.MinCombinedResults,
		MinAvgScore: e.cfg.MinAvgScore,
	}
	timeout := time.Duration(e.cfg.TierTimeoutMS) * time.Millisecond

	results := make(chan tierResult, 3)
	go e.runTier(ctx, timeout, results, model.TierCorpus, func(c context.Context) ([]model.Candidate, error) {
		return e.corpus.Search(c, queryVec, text, topK)
	})
	go e.runTier(ctx, timeout, results, model.TierKnowledge, func(c context.Context) ([]model.Candidate, error) {
		return e.knowledge.Search(c, queryVec, topK)
	})
	launched := 2
	liveStarted := false
	if fetchEnabled && mode == model.FetchModeParallel {
		go e.runTier(ctx, timeout, results, model.TierLive, func(c context.Context) ([]model.Candidate, error) {
			return e.fetchLive(c, queryVec, text)
		})
		launched++
		liveStarted = true
	}

	var tier1, tier2, tier3 []model.Candidate
	tierErrs := map[model.Tier]error{}
	for i := 0; i < launched; i++ {
		r := <-results
		if r.err != nil {
			tierErrs[r.tier] = r.err
			logger.Warn("tier excluded from fusion",
				zap.String("tier", r.tier.String()),
				zap.Error(r.err),
			)
			continue
		}
		switch r.tier {
		case model.TierCorpus:
			tier1 = r.candidates
		case model.TierKnowledge:
			tier2 = r.candidates
		case model.TierLive:
			tier3 = r.candidates
		}
	}

	attempted := launched
	if fetchEnabled && !liveStarted {
		combined := make([]model.Candidate, 0, len(tier1)+len(tier2))
		combined = append(combined, tier1...)
		combined = append(combined, tier2...)
		if policy.ShouldFetch(combined) {
			tctx, cancel := context.WithTimeout(ctx, timeout)
			live, err := e.fetchLive(tctx, queryVec, text)
			cancel()
			attempted++
			if err != nil {
				tierErrs[model.TierLive] = err
				logger.Warn("live fetch failed, degrading to cached tiers", zap.Error(err))
			} else {
				tier3 = live
			}
			liveStarted = true
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// A tier that ran without error counts as alive even with zero hits;
	// the query only fails when every attempted tier errored.
	if len(tierErrs) == attempted && tierErrs[model.TierCorpus] != nil {
		return nil, fmt.Errorf("%w: corpus: %v", appErr.ErrAllTiersFailed, tierErrs[model.TierCorpus])
	}

	fused, stats := e.fusion.Fuse(tier1, tier2, tier3, topK)

	answer := ""
	if e.generator != nil && len(fused) > 0 {
		answer, err = e.generateAnswer(ctx, text, fused)
		if err != nil {
			logger.Warn("answer generation failed, returning sources only", zap.Error(err))
			answer = ""
		}
	}

	if req.UseCache && e.answers != nil {
		e.answers.Put(queryVec, answer, fused, stats)
	}
	logger.Info("query answered",
		zap.Int("tier1", stats.Tier1Count),
		zap.Int("tier2", stats.Tier2Count),
		zap.Int("tier3", stats.Tier3Count),
	)
	return buildResponse(answer, fused, stats), nil
}

func (e *Engine) runTier(ctx context.Context, timeout time.Duration, out chan<- tierResult, tier model.Tier, search func(context.Context) ([]model.Candidate, error)) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	candidates, err := search(tctx)
	out <- tierResult{tier: tier, candidates: candidates, err: err}
}

// fetchLive runs the external search and feeds every fetched item into
// the knowledge cache before scoring it against the current query.
// Cache writes are committed even if the query is cancelled afterward:
// partial caching is useful, not harmful.
func (e *Engine) fetchLive(ctx context.Context, queryVec []float32, queryText string) ([]model.Candidate, error) {
	items, err := e.fetcher.Fetch(ctx, queryText)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx)
	candidates := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		entry, _, err := e.knowledge.Upsert(ctx, item.Text, item.URL, e.fetchTrust)
		if err != nil {
			logger.Error("dropping fetched item", zap.String("url", item.URL), zap.Error(err))
			continue
		}
		candidates = append(candidates, model.Candidate{
			ID:       entry.ID,
			Ref:      item.URL,
			Text:     item.Text,
			Tier:     model.TierLive,
			Score:    Cosine(queryVec, entry.Embedding),
			Citation: entry.Citation,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

func (e *Engine) generateAnswer(ctx context.Context, queryText string, sources []model.FusedCandidate) (string, error) {
	var sb strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, s.Citation, s.Text)
	}
	prompt := fmt.Sprintf(`You are a careful research assistant.
Answer the question using ONLY the numbered sources below.
- Cite sources inline as [n].
- If the sources do not contain the answer, say so.
- Output ONLY the answer text.

QUESTION:
%s

SOURCES:
%s`, queryText, sb.String())
	return e.generator.Generate(ctx, prompt)
}

func buildResponse(answer string, sources []model.FusedCandidate, stats model.RetrievalStats) *model.QueryResponse {
	refs := make([]model.SourceRef, 0, len(sources))
	for _, s := range sources {
		refs = append(refs, model.SourceRef{
			ID:       s.ID,
			Ref:      s.Ref,
			Tier:     s.Tier,
			Score:    s.FusedScore,
			Citation: s.Citation,
		})
	}
	return &model.QueryResponse{
		Answer:         answer,
		Sources:        refs,
		RetrievalStats: stats,
	}
}
