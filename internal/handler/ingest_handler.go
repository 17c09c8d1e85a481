package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/strata-search/strata/internal/ingest"
	"github.com/strata-search/strata/internal/pkg/response"
)

type IngestHandler struct {
	manager *ingest.Manager
}

func NewIngestHandler(manager *ingest.Manager) *IngestHandler {
	return &IngestHandler{manager: manager}
}

// Ingest triggers a full corpus sync and reports what changed.
// Unchanged files are skipped, so re-running is cheap.
func (h *IngestHandler) Ingest(c *gin.Context) {
	report, err := h.manager.IngestDir(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}
