package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"rotationdash/internal/artifacts"
	"rotationdash/internal/config"
	"rotationdash/internal/infrastructure"
	"rotationdash/internal/operations"
	"rotationdash/internal/services"
	"rotationdash/internal/signals"
)

// Core is the domain layer shared by the HTTP server and the CLI
type Core struct {
	Catalog      *operations.Catalog
	Orchestrator *operations.Orchestrator
	Pipeline     *services.PipelineService
	Dashboard    *services.DashboardService
	Loader       *signals.Loader
	Status       artifacts.StatusReader
}

// CoreOptions injects collaborators into BuildCore. Zero values select the
// production defaults.
type CoreOptions struct {
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Metrics    *infrastructure.PipelineMetrics
	Observer   operations.Observer
	Runner     operations.StageRunner
	HTTPClient *http.Client
}

// BuildCore wires catalog, orchestrator, artifact access and the services
// from cfg. cfg.Project.Root must already be resolved in local mode.
func BuildCore(cfg *config.Config, opts CoreOptions) (*Core, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = operations.NewExecRunner(logger)
	}

	orchOpts := []operations.Option{
		operations.WithLogger(logger),
		operations.WithTracer(opts.Tracer),
		operations.WithMetrics(opts.Metrics),
	}
	if opts.Observer != nil {
		orchOpts = append(orchOpts, operations.WithObserver(opts.Observer))
	}
	orchestrator := operations.NewOrchestrator(runner, catalog, orchOpts...)

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Source.HTTPTimeout}
	}

	var (
		source artifacts.Source
		status artifacts.StatusReader
	)
	if cfg.Remote() {
		source = artifacts.NewRemoteSource(cfg.Source.BaseURL, client)
		status = artifacts.NewRemoteProbe(cfg.Source.BaseURL, client, logger)
	} else {
		source = artifacts.NewLocalSource(cfg.Project.Root)
		status = artifacts.NewProbe(cfg.Project.Root)
	}
	loader := signals.NewLoader(source, cfg.Project.PriceFile)

	pipeline := services.NewPipelineService(orchestrator, services.PipelineServiceOptions{
		ReadOnly: cfg.Remote(),
		Metrics:  opts.Metrics,
		Logger:   logger,
	})

	logger.Info("core initialized",
		slog.String("source_mode", cfg.Source.Mode),
		slog.String("artifact_location", source.Location(artifacts.StandardArtifacts()[0])),
		slog.Int("stages", catalog.Len()))

	return &Core{
		Catalog:      catalog,
		Orchestrator: orchestrator,
		Pipeline:     pipeline,
		Dashboard:    services.NewDashboardService(loader, status, logger),
		Loader:       loader,
		Status:       status,
	}, nil
}

func loadCatalog(cfg *config.Config) (*operations.Catalog, error) {
	if cfg.Project.CatalogFile == "" {
		return operations.DefaultCatalog(cfg.Project.Root, cfg.Project.Interpreter), nil
	}
	catalog, err := operations.LoadCatalog(cfg.ProjectPath(cfg.Project.CatalogFile),
		cfg.Project.Root, cfg.Project.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage catalog: %w", err)
	}
	return catalog, nil
}
