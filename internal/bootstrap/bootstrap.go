// Package bootstrap provides dependency initialization for the Deep Research API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/deepresearch-api/internal/config"
	"github.com/maauso/deepresearch-api/internal/governor"
	"github.com/maauso/deepresearch-api/internal/job"
	"github.com/maauso/deepresearch-api/internal/llm"
	"github.com/maauso/deepresearch-api/internal/research"
	"github.com/maauso/deepresearch-api/internal/source"
	"github.com/maauso/deepresearch-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server and CLI.
type Dependencies struct {
	Registry     *job.Registry
	Orchestrator *research.Orchestrator
	Governor     *governor.Governor
	Storage      storage.Storage
	// Janitor is nil when job retention is disabled.
	Janitor *job.Janitor
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize concurrency limits shared by every job
	gov, err := governor.New(cfg.MaxConcurrentLLMCalls, cfg.MaxConcurrentSearchCalls)
	if err != nil {
		return nil, fmt.Errorf("create governor: %w", err)
	}

	// Initialize LLM client
	llmOpts := []llm.Option{
		llm.WithModel(cfg.OpenAIModel),
		llm.WithTimeout(cfg.LLMTimeout),
	}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llmClient, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	// Initialize search source
	var srcOpts []source.ClientOption
	if cfg.FirecrawlBaseURL != "" {
		srcOpts = append(srcOpts, source.WithBaseURL(cfg.FirecrawlBaseURL))
	}
	src, err := source.NewFirecrawlClient(cfg.FirecrawlAPIKey, srcOpts...)
	if err != nil {
		return nil, fmt.Errorf("create search client: %w", err)
	}

	// Initialize job registry and retention
	registry := job.NewRegistry(logger)

	var janitor *job.Janitor
	if cfg.JobRetention > 0 {
		janitor, err = job.NewJanitor(registry, cfg.JobRetention, cfg.JobSweepSchedule, logger)
		if err != nil {
			return nil, fmt.Errorf("create job janitor: %w", err)
		}
	}

	orch, err := research.New(
		registry,
		llmClient,
		src,
		store,
		gov,
		research.WithLogger(logger),
		research.WithMaxDepth(cfg.MaxResearchDepth),
	)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	logger.Info("research pipeline configured",
		slog.String("model", llmClient.Model()),
		slog.Int("max_depth", cfg.MaxResearchDepth),
		slog.Int("llm_permits", gov.LLM().Permits()),
		slog.Int("search_permits", gov.Search().Permits()),
	)

	return &Dependencies{
		Registry:     registry,
		Orchestrator: orch,
		Governor:     gov,
		Storage:      store,
		Janitor:      janitor,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			URLTTL:          cfg.ReportURLTTL,
		}
		s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.ReportsDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("reports_dir", localStore.Dir()),
	)
	return localStore, nil
}
