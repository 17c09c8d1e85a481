package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/strata-search/strata/internal/pkg/response"
	"github.com/strata-search/strata/internal/retrieval"
)

type counter interface {
	Count(ctx context.Context) (int64, error)
}

type StatsHandler struct {
	corpus    counter
	knowledge counter
	answers   *retrieval.AnswerCache
}

func NewStatsHandler(corpus, knowledge counter, answers *retrieval.AnswerCache) *StatsHandler {
	return &StatsHandler{corpus: corpus, knowledge: knowledge, answers: answers}
}

func (h *StatsHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	corpusCount, err := h.corpus.Count(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	knowledgeCount, err := h.knowledge.Count(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	answerCount := 0
	if h.answers != nil {
		answerCount = h.answers.Len()
	}
	response.Success(c, gin.H{
		"corpus_chunks":     corpusCount,
		"knowledge_entries": knowledgeCount,
		"cached_answers":    answerCount,
	})
}
