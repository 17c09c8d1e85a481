package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strata-search/strata/internal/model"
)

// LoadMatrices reads every *.json calibration blob under dir and
// returns them keyed by embedder id. A missing or empty directory is
// not an error: calibration is a recoverable condition per embedder.
func LoadMatrices(dir string) (map[string]*model.CalibrationMatrix, error) {
	matrices := make(map[string]*model.CalibrationMatrix)
	if dir == "" {
		return matrices, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read calibration blob %s: %w", file, err)
		}
		var m model.CalibrationMatrix
		if err := json.Unmarshal(content, &m); err != nil {
			return nil, fmt.Errorf("decode calibration blob %s: %w", file, err)
		}
		if err := validateMatrix(&m); err != nil {
			return nil, fmt.Errorf("calibration blob %s: %w", file, err)
		}
		matrices[m.EmbedderID] = &m
	}
	return matrices, nil
}

func validateMatrix(m *model.CalibrationMatrix) error {
	if m.EmbedderID == "" {
		return fmt.Errorf("embedder_id is required")
	}
	if m.SourceDim <= 0 || m.TargetDim <= 0 {
		return fmt.Errorf("source_dim/target_dim must be positive")
	}
	if len(m.Weights) != m.SourceDim {
		return fmt.Errorf("weights has %d rows, want %d", len(m.Weights), m.SourceDim)
	}
	for i, row := range m.Weights {
		if len(row) != m.TargetDim {
			return fmt.Errorf("weights row %d has %d cols, want %d", i, len(row), m.TargetDim)
		}
	}
	return nil
}

// Project maps a native vector into canonical space: target = source · weights.
func Project(source []float32, m *model.CalibrationMatrix) ([]float32, error) {
	if len(source) != m.SourceDim {
		return nil, fmt.Errorf("vector has dim %d, calibration expects %d", len(source), m.SourceDim)
	}
	target := make([]float32, m.TargetDim)
	for i, v := range source {
		if v == 0 {
			continue
		}
		row := m.Weights[i]
		for j := range target {
			target[j] += v * row[j]
		}
	}
	return target, nil
}
