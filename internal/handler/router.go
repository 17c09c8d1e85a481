package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/strata-search/strata/internal/middleware"
)

type RouterDeps struct {
	Query           *QueryHandler
	Ingest          *IngestHandler
	Stats           *StatsHandler
	QueryRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	queryGroup := api.Group("")
	if deps.QueryRateWindow > 0 {
		queryGroup.Use(middleware.RateLimit(deps.QueryRateWindow))
	}
	queryGroup.POST("/query", deps.Query.Query)

	api.POST("/ingest", deps.Ingest.Ingest)
	api.GET("/stats", deps.Stats.Stats)
}
