package embedding

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/ai"
	"github.com/strata-search/strata/internal/model"
)

const (
	TaskQuery    = "RETRIEVAL_QUERY"
	TaskDocument = "RETRIEVAL_DOCUMENT"
)

// Gateway maps every configured embedding backend into one canonical
// vector space. The canonical embedder passes through untouched;
// non-canonical backends are projected through their calibration
// matrix. Any per-backend failure degrades to the canonical embedder
// instead of failing the call.
type Gateway struct {
	canonicalID string
	canonical   ai.IEmbedder
	backends    map[string]ai.IEmbedder
	matrices    map[string]*model.CalibrationMatrix
}

func NewGateway(canonicalID string, canonical ai.IEmbedder, backends map[string]ai.IEmbedder, matrices map[string]*model.CalibrationMatrix) *Gateway {
	if backends == nil {
		backends = map[string]ai.IEmbedder{}
	}
	if matrices == nil {
		matrices = map[string]*model.CalibrationMatrix{}
	}
	return &Gateway{
		canonicalID: canonicalID,
		canonical:   canonical,
		backends:    backends,
		matrices:    matrices,
	}
}

func (g *Gateway) CanonicalID() string {
	return g.canonicalID
}

// Embed returns a vector in canonical space. An empty embedderID
// selects the canonical embedder.
func (g *Gateway) Embed(ctx context.Context, text string, embedderID string, taskType string) ([]float32, error) {
	if embedderID == "" || embedderID == g.canonicalID {
		return g.canonical.Embed(ctx, text, taskType)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("embedder_id", embedderID))
	backend, ok := g.backends[embedderID]
	if !ok {
		logger.Warn("unknown embedder, falling back to canonical")
		return g.canonical.Embed(ctx, text, taskType)
	}
	matrix, ok := g.matrices[embedderID]
	if !ok {
		logger.Warn("calibration matrix missing, degrading to canonical embedder")
		return g.canonical.Embed(ctx, text, taskType)
	}
	native, err := backend.Embed(ctx, text, taskType)
	if err != nil {
		logger.Warn("embedding backend unavailable, degrading to canonical embedder", zap.Error(err))
		return g.canonical.Embed(ctx, text, taskType)
	}
	projected, err := Project(native, matrix)
	if err != nil {
		logger.Warn("calibration projection failed, degrading to canonical embedder", zap.Error(err))
		return g.canonical.Embed(ctx, text, taskType)
	}
	return projected, nil
}
