package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/strata-search/strata/internal/model"
	"github.com/strata-search/strata/internal/pkg/errcode"
	"github.com/strata-search/strata/internal/pkg/response"
	"github.com/strata-search/strata/internal/retrieval"
)

type QueryHandler struct {
	engine *retrieval.Engine
}

func NewQueryHandler(engine *retrieval.Engine) *QueryHandler {
	return &QueryHandler{engine: engine}
}

// queryRequest uses pointers for the boolean knobs so an absent field
// means "default on" rather than false.
type queryRequest struct {
	QueryText           string `json:"query_text"`
	TopK                int    `json:"top_k"`
	UseCache            *bool  `json:"use_cache"`
	EmbedderID          string `json:"embedder_id"`
	EnableExternalFetch *bool  `json:"enable_external_fetch"`
	FetchMode           string `json:"fetch_mode"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	useCache := true
	if req.UseCache != nil {
		useCache = *req.UseCache
	}
	enableFetch := true
	if req.EnableExternalFetch != nil {
		enableFetch = *req.EnableExternalFetch
	}
	result, err := h.engine.Query(c.Request.Context(), model.QueryRequest{
		QueryText:           req.QueryText,
		TopK:                req.TopK,
		UseCache:            useCache,
		EmbedderID:          req.EmbedderID,
		EnableExternalFetch: enableFetch,
		FetchMode:           req.FetchMode,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
