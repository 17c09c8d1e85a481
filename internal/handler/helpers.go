package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/pkg/errcode"
	appErr "github.com/strata-search/strata/internal/pkg/errors"
	"github.com/strata-search/strata/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrEmbedderUnavailable):
		response.Error(c, errcode.ErrEmbedderUnavailable, "embedder unavailable")
	case errors.Is(err, appErr.ErrAllTiersFailed):
		response.Error(c, errcode.ErrRetrievalFailed, "all retrieval tiers failed")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
