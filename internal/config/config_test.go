package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost", "port": 5432, "user": "u", "password": "p", "dbname": "d"},
		"ai": {"provider": "gemini", "embed_model": "text-embedding-004", "data": {"api_key": "k"}}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 10, cfg.Retrieval.TopK)
	require.Equal(t, 1.0, cfg.Retrieval.TierWeights.Corpus)
	require.Equal(t, 0.9, cfg.Retrieval.TierWeights.Knowledge)
	require.Equal(t, 0.7, cfg.Retrieval.TierWeights.Live)
	require.Equal(t, 60.0, cfg.Retrieval.RRFConstant)
	require.Equal(t, "on_low_confidence", cfg.Retrieval.FetchMode)
	require.Equal(t, 3, cfg.Retrieval.MinCombinedResults)
	require.Equal(t, 0.55, cfg.Retrieval.MinAvgScore)
	require.Equal(t, 24*7, cfg.Retrieval.KnowledgeTTLHours)
	require.Equal(t, 4, cfg.Ingest.PoolSize)
	require.Equal(t, "0 * * * *", cfg.Jobs.KnowledgeSweepCron)
	require.Equal(t, 0.5, cfg.Fetcher.TrustScore)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 9090,
		"database": {"dsn": "postgres://u:p@localhost/d"},
		"ai": {"provider": "openai", "embed_model": "text-embedding-3-small", "data": {"api_key": "k"}},
		"retrieval": {
			"top_k": 5,
			"tier_weights": {"corpus": 2.0, "knowledge": 1.5, "live": 0.2},
			"fetch_mode": "parallel",
			"min_avg_score": 0.7
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.Equal(t, 2.0, cfg.Retrieval.TierWeights.Corpus)
	require.Equal(t, "parallel", cfg.Retrieval.FetchMode)
	require.Equal(t, 0.7, cfg.Retrieval.MinAvgScore)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing port",
			content: `{"database": {"host": "h"}, "ai": {"provider": "gemini", "embed_model": "m"}}`,
		},
		{
			name:    "missing database",
			content: `{"port": 8080, "ai": {"provider": "gemini", "embed_model": "m"}}`,
		},
		{
			name:    "missing ai provider",
			content: `{"port": 8080, "database": {"host": "h"}, "ai": {"embed_model": "m"}}`,
		},
		{
			name:    "missing embed model",
			content: `{"port": 8080, "database": {"host": "h"}, "ai": {"provider": "gemini"}}`,
		},
		{
			name:    "embedder without id",
			content: `{"port": 8080, "database": {"host": "h"}, "ai": {"provider": "gemini", "embed_model": "m"}, "embedders": [{"provider": "openai", "model": "x"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
