package bootstrap

import (
	"context"
	"fmt"

	"github.com/ncastellanos/figma-qa/internal/config"
	"github.com/ncastellanos/figma-qa/internal/core/ports"
	"github.com/ncastellanos/figma-qa/internal/core/usecase"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/export/excel"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/figma"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/grouping"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/llm/openai"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/queue/nats"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/repository/postgres"
	"github.com/ncastellanos/figma-qa/internal/infrastructure/resilience"
)

// App wires the shared dependency graph for both the API and the worker.
type App struct {
	Config config.Config

	Queue    *nats.Queue
	Analyses ports.AnalysisRepository
	Cases    ports.CaseRepository
	Exporter ports.Exporter

	StartUC ports.AnalysisStarter

	fetcher     ports.DocumentFetcher
	partitioner ports.UnitPartitioner
	renderer    ports.ImageRenderer
	generator   ports.CaseGenerator

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	analyses := postgres.NewAnalysisRepository(db)
	if err := analyses.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	cases := postgres.NewCaseRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init job queue: %w", err)
	}

	figmaClient := figma.New(figma.Options{
		BaseURL:           cfg.FigmaAPIURL,
		RequestsPerSecond: cfg.FigmaRPS,
		NodesPerCall:      cfg.NodesPerCall,
		ImagesPerCall:     cfg.ImagesPerCall,
		RenderConcurrency: cfg.RenderConcurrency,
	}, executor)

	generator := openai.New(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, executor)

	partitioner := grouping.New(grouping.Limits{
		MinFramesPerUnit:   cfg.MinFramesPerUnit,
		MaxGroupsPerPage:   cfg.MaxGroupsPerPage,
		MaxSectionsPerPage: cfg.MaxSectionsPerPage,
		MaxGroupsGlobal:    cfg.MaxGroupsGlobal,
		MaxSectionsGlobal:  cfg.MaxSectionsGlobal,
	})

	return &App{
		Config:      cfg,
		Queue:       queue,
		Analyses:    analyses,
		Cases:       cases,
		Exporter:    excel.New(),
		StartUC:     usecase.NewStartAnalysisUseCase(analyses, queue, cfg.DefaultModel),
		fetcher:     figmaClient,
		partitioner: partitioner,
		renderer:    figmaClient,
		generator:   generator,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// NewRunner builds the worker-side orchestrator. The observer is injected
// here so only the worker pays for pipeline metrics.
func (a *App) NewRunner(observer ports.PipelineObserver) ports.AnalysisRunner {
	return usecase.NewRunAnalysisUseCase(a.Analyses, a.fetcher, a.partitioner, a.renderer, a.generator, observer)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
