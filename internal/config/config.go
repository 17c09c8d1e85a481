package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port             int               `json:"port"`
	CORSAllowlist    []string          `json:"cors_allowlist"`
	QueryRateLimitMS int               `json:"query_rate_limit_ms"`
	LogConfig        logger.LogConfig  `json:"log_config"`
	Database         DatabaseConfig    `json:"database"`
	AI               AIConfig          `json:"ai"`
	Embedders        []EmbedderConfig  `json:"embedders"`
	Calibration      CalibrationConfig `json:"calibration"`
	Retrieval        RetrievalConfig   `json:"retrieval"`
	Fetcher          FetcherConfig     `json:"fetcher"`
	Ingest           IngestConfig      `json:"ingest"`
	Jobs             JobsConfig        `json:"jobs"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	DSN      string `json:"dsn"`
}

// AIConfig configures the canonical embedder and the optional answer
// generator. Data is forwarded verbatim to the provider factory.
type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	EmbedModel    string      `json:"embed_model"`
	Timeout       int         `json:"timeout"`
	MaxInputChars int         `json:"max_input_chars"`
	Data          interface{} `json:"data"`
}

// EmbedderConfig configures one non-canonical embedding backend. Its
// vectors are projected into canonical space through a calibration
// matrix stored under the embedder id.
type EmbedderConfig struct {
	ID       string      `json:"id"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

// CalibrationConfig points at a directory holding one JSON matrix blob
// per non-canonical embedder, loaded once at startup.
type CalibrationConfig struct {
	Dir string `json:"dir"`
}

type TierWeights struct {
	Corpus    float64 `json:"corpus"`
	Knowledge float64 `json:"knowledge"`
	Live      float64 `json:"live"`
}

type RetrievalConfig struct {
	TopK                 int         `json:"top_k"`
	TierWeights          TierWeights `json:"tier_weights"`
	RRFConstant          float64     `json:"rrf_constant"`
	FetchMode            string      `json:"fetch_mode"`
	TierTimeoutMS        int         `json:"tier_timeout_ms"`
	AnswerCacheSize      int         `json:"answer_cache_size"`
	AnswerCacheThreshold float64     `json:"answer_cache_threshold"`
	AnswerCacheTTLMins   int         `json:"answer_cache_ttl_minutes"`
	KnowledgeTTLHours    int         `json:"knowledge_ttl_hours"`
	MinCombinedResults   int         `json:"min_combined_results"`
	MinAvgScore          float64     `json:"min_avg_score"`
	EmbedCacheSize       int         `json:"embed_cache_size"`
	EmbedCacheTTLMins    int         `json:"embed_cache_ttl_minutes"`
}

type FetcherConfig struct {
	Endpoint      string  `json:"endpoint"`
	MaxResults    int     `json:"max_results"`
	TimeoutMS     int     `json:"timeout_ms"`
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	TrustScore    float64 `json:"trust_score"`
	FetchPages    bool    `json:"fetch_pages"`
}

type IngestConfig struct {
	Dir        string `json:"dir"`
	PoolSize   int    `json:"pool_size"`
	Watch      bool   `json:"watch"`
	DebounceMS int    `json:"debounce_ms"`
}

type JobsConfig struct {
	KnowledgeSweepCron string `json:"knowledge_sweep_cron"`
	ReingestCron       string `json:"reingest_cron"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	for i, e := range cfg.Embedders {
		if e.ID == "" || e.Provider == "" || e.Model == "" {
			return nil, fmt.Errorf("embedders[%d]: id/provider/model are required", i)
		}
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	applyRetrievalDefaults(&cfg.Retrieval)
	applyFetcherDefaults(&cfg.Fetcher)
	if cfg.Ingest.PoolSize <= 0 {
		cfg.Ingest.PoolSize = 4
	}
	if cfg.Ingest.DebounceMS <= 0 {
		cfg.Ingest.DebounceMS = 2000
	}
	if cfg.Jobs.KnowledgeSweepCron == "" {
		cfg.Jobs.KnowledgeSweepCron = "0 * * * *"
	}
	return &cfg, nil
}

func applyRetrievalDefaults(rc *RetrievalConfig) {
	if rc.TopK <= 0 {
		rc.TopK = 10
	}
	if rc.TierWeights.Corpus <= 0 {
		rc.TierWeights.Corpus = 1.0
	}
	if rc.TierWeights.Knowledge <= 0 {
		rc.TierWeights.Knowledge = 0.9
	}
	if rc.TierWeights.Live <= 0 {
		rc.TierWeights.Live = 0.7
	}
	if rc.RRFConstant <= 0 {
		rc.RRFConstant = 60
	}
	if rc.FetchMode == "" {
		rc.FetchMode = "on_low_confidence"
	}
	if rc.TierTimeoutMS <= 0 {
		rc.TierTimeoutMS = 3000
	}
	if rc.AnswerCacheSize <= 0 {
		rc.AnswerCacheSize = 1024
	}
	if rc.AnswerCacheThreshold <= 0 {
		rc.AnswerCacheThreshold = 0.92
	}
	if rc.AnswerCacheTTLMins <= 0 {
		rc.AnswerCacheTTLMins = 60
	}
	if rc.KnowledgeTTLHours <= 0 {
		rc.KnowledgeTTLHours = 24 * 7
	}
	if rc.MinCombinedResults <= 0 {
		rc.MinCombinedResults = 3
	}
	if rc.MinAvgScore <= 0 {
		rc.MinAvgScore = 0.55
	}
	if rc.EmbedCacheSize <= 0 {
		rc.EmbedCacheSize = 10000
	}
	if rc.EmbedCacheTTLMins <= 0 {
		rc.EmbedCacheTTLMins = 120
	}
}

func applyFetcherDefaults(fc *FetcherConfig) {
	if fc.MaxResults <= 0 {
		fc.MaxResults = 5
	}
	if fc.TimeoutMS <= 0 {
		fc.TimeoutMS = 8000
	}
	if fc.RatePerSecond <= 0 {
		fc.RatePerSecond = 2
	}
	if fc.Burst <= 0 {
		fc.Burst = 2
	}
	if fc.TrustScore <= 0 {
		fc.TrustScore = 0.5
	}
}
