package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/strata-search/strata/internal/ai"
	"github.com/strata-search/strata/internal/config"
	"github.com/strata-search/strata/internal/embedding"
	"github.com/strata-search/strata/internal/handler"
	"github.com/strata-search/strata/internal/ingest"
	"github.com/strata-search/strata/internal/job"
	"github.com/strata-search/strata/internal/middleware"
	"github.com/strata-search/strata/internal/repo"
	"github.com/strata-search/strata/internal/retrieval"
	"github.com/strata-search/strata/internal/schedule"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "strata",
		Short: "strata retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run strata server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup(configPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return runServer(cfg, db)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "synchronize the corpus directory and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup(configPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return runIngest(cfg, db)
		},
	}
	ingestCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(runCmd, ingestCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	db, err := repo.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, db, nil
}

// buildGateway assembles the canonical embedder plus every configured
// secondary backend behind one calibrated entry point.
func buildGateway(cfg *config.Config) (*embedding.Gateway, ai.IEmbedder, ai.IProvider, error) {
	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	provider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init ai provider: %w", err)
	}
	canonical := embedding.WrapLRUCache(
		ai.NewEmbedder(provider, cfg.AI.EmbedModel),
		cfg.Retrieval.EmbedCacheSize,
		time.Duration(cfg.Retrieval.EmbedCacheTTLMins)*time.Minute,
	)

	backends := map[string]ai.IEmbedder{}
	for _, ec := range cfg.Embedders {
		backendProvider, err := ai.NewProvider(ec.Provider, ec.Data)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init embedder %s: %w", ec.ID, err)
		}
		backends[ec.ID] = ai.NewEmbedder(backendProvider, ec.Model)
	}
	matrices, err := embedding.LoadMatrices(cfg.Calibration.Dir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load calibration matrices: %w", err)
	}
	gateway := embedding.NewGateway(cfg.AI.EmbedModel, canonical, backends, matrices)
	return gateway, canonical, provider, nil
}

func runServer(cfg *config.Config, db *sql.DB) error {
	rootLogger := logutil.GetLogger(context.Background())
	rootLogger.Info("starting server", zap.Int("port", cfg.Port), zap.String("corpus_dir", cfg.Ingest.Dir))

	gateway, canonical, provider, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	chunkRepo := repo.NewChunkRepo(db)
	knowledgeRepo := repo.NewKnowledgeRepo(db)

	corpus := retrieval.NewCorpusIndex(chunkRepo)
	knowledge := retrieval.NewKnowledgeCache(
		knowledgeRepo,
		gateway,
		time.Duration(cfg.Retrieval.KnowledgeTTLHours)*time.Hour,
	)
	answers := retrieval.NewAnswerCache(
		cfg.Retrieval.AnswerCacheSize,
		time.Duration(cfg.Retrieval.AnswerCacheTTLMins)*time.Minute,
		cfg.Retrieval.AnswerCacheThreshold,
	)
	var fetcher retrieval.ExternalFetcher
	if cfg.Fetcher.Endpoint != "" {
		fetcher = retrieval.NewLiveFetcher(cfg.Fetcher)
	}
	var generator ai.IGenerator
	if cfg.AI.Model != "" {
		generator = ai.NewGenerator(provider, cfg.AI.Model)
	}
	engine := retrieval.NewEngine(
		gateway, corpus, knowledge, fetcher, answers, generator,
		cfg.Retrieval, cfg.Fetcher.TrustScore,
	)

	manager, err := ingest.NewManager(chunkRepo, canonical, cfg.Ingest)
	if err != nil {
		return err
	}
	defer manager.Close()

	deps := handler.RouterDeps{
		Query:           handler.NewQueryHandler(engine),
		Ingest:          handler.NewIngestHandler(manager),
		Stats:           handler.NewStatsHandler(corpus, knowledge, answers),
		QueryRateWindow: time.Duration(cfg.QueryRateLimitMS) * time.Millisecond,
	}

	webEngine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewKnowledgeSweepJob(knowledge), cfg.Jobs.KnowledgeSweepCron); err != nil {
		return err
	}
	if cfg.Jobs.ReingestCron != "" {
		if err := scheduler.AddJob(job.NewReingestJob(manager), cfg.Jobs.ReingestCron); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.Ingest.Watch && cfg.Ingest.Dir != "" {
		watcher := ingest.NewWatcher(manager, cfg.Ingest)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				rootLogger.Error("corpus watcher stopped", zap.Error(err))
			}
		}()
	}

	rootLogger.Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := webEngine.Run(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	rootLogger.Info("server stopping...")
	return nil
}

func runIngest(cfg *config.Config, db *sql.DB) error {
	if cfg.Ingest.Dir == "" {
		return fmt.Errorf("ingest.dir is required")
	}
	_, canonical, _, err := buildGateway(cfg)
	if err != nil {
		return err
	}
	manager, err := ingest.NewManager(repo.NewChunkRepo(db), canonical, cfg.Ingest)
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := manager.IngestDir(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("ingest complete",
		zap.Int("new", report.NewFiles),
		zap.Int("changed", report.ChangedFiles),
		zap.Int("unchanged", report.UnchangedFiles),
		zap.Int("errors", report.ErrorFiles),
		zap.Int("chunks", report.ChunksWritten),
	)
	return nil
}
