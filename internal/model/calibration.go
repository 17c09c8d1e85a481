package model

// CalibrationMatrix is a learned linear map projecting one embedder's
// native space into the canonical space. Immutable once computed;
// loaded at startup, one blob per non-canonical embedder.
type CalibrationMatrix struct {
	EmbedderID string      `json:"embedder_id"`
	SourceDim  int         `json:"source_dim"`
	TargetDim  int         `json:"target_dim"`
	Weights    [][]float32 `json:"weights"`
}
