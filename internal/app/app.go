package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"rotationdash/internal/artifacts"
	"rotationdash/internal/config"
	apierrors "rotationdash/internal/errors"
	"rotationdash/internal/infrastructure"
	customMiddleware "rotationdash/internal/middleware"
	"rotationdash/internal/operations"
	"rotationdash/internal/services"
	handlers "rotationdash/internal/transport/http"
	ws "rotationdash/internal/websocket"
)

const AppName = "rotationdash"

// Version is set at build time with -ldflags "-X rotationdash/internal/app.Version=..."
var Version = "dev"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	Core          *Core
	HealthService *services.HealthService
}

// Option customizes New
type Option func(*CoreOptions)

// WithRunner replaces the process-spawning stage runner
func WithRunner(runner operations.StageRunner) Option {
	return func(o *CoreOptions) {
		o.Runner = runner
	}
}

// WithHTTPClient sets the client used in remote source mode
func WithHTTPClient(client *http.Client) Option {
	return func(o *CoreOptions) {
		o.HTTPClient = client
	}
}

// NewApplication loads configuration and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := ResolveRoot(cfg, logger); err != nil {
		return nil, err
	}
	return New(cfg, logger)
}

// ResolveRoot fills cfg.Project.Root. Local mode cannot run without it;
// remote mode only reads published files, so a missing root is logged.
func ResolveRoot(cfg *config.Config, logger *slog.Logger) error {
	err := cfg.EnsureProjectRoot()
	switch {
	case err == nil:
		logger.Info("project root resolved", slog.String("root", cfg.Project.Root))
		return nil
	case cfg.Remote():
		logger.Warn("project root not found; pipeline triggers are disabled in remote mode anyway",
			slog.String("error", err.Error()))
		return nil
	default:
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	providers, err := infrastructure.InitializeOTel(cfg.Observability, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	hub := ws.NewHub(logger)

	coreOpts := CoreOptions{
		Logger:   logger,
		Tracer:   providers.Tracer,
		Metrics:  metrics,
		Observer: hub,
	}
	for _, opt := range opts {
		opt(&coreOpts)
	}
	core, err := BuildCore(cfg, coreOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		WebSocketHub:  hub,
		Core:          core,
		HealthService: services.NewHealthService(Version, cfg, core.Pipeline, logger),
	}

	if err := app.setupRouter(); err != nil {
		return nil, err
	}
	app.createServer()
	return app, nil
}

// setupRouter configures all routes
func (a *Application) setupRouter() error {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Observability.Environment == "development")

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create otel middleware: %w", err)
	}

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// The upgrade hijacks the connection, so it skips the response middleware
	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, a.Logger))

	r.Group(func(r chi.Router) {
		r.Use(otelMiddleware.Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(errorHandler))
		r.Use(customMiddleware.SecurityHeaders)
		if a.Config.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.RateLimit.RPS,
				a.Config.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		if a.OTelProviders.PrometheusHTTP != nil {
			r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/health", healthHandler.HealthCheck)
			r.Get("/version", healthHandler.Version)

			pipelineHandler := handlers.NewPipelineHandler(a.Core.Pipeline, a.Logger, errorHandler)
			r.Mount("/pipeline", pipelineHandler.Routes())

			handlers.NewDashboardHandler(a.Core.Dashboard, a.Logger, errorHandler).Routes(r)
		})
	})

	a.Router = r
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the hub and the HTTP server. A listener failure calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.Config.Server.Port),
		slog.String("source_mode", a.Config.Source.Mode),
		slog.String("project_root", a.Config.Project.Root))

	a.WebSocketHub.Start()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.logArtifactSummary(ctx)
	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// logArtifactSummary reports stale and missing artifacts once at startup
func (a *Application) logArtifactSummary(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, a.Config.Source.HTTPTimeout)
	defer cancel()

	var stale, missing int
	for _, st := range a.Core.Dashboard.Artifacts(probeCtx) {
		switch {
		case st.Freshness == artifacts.FreshnessMissing:
			missing++
		case st.Stale():
			stale++
		}
	}
	level := slog.LevelInfo
	if stale+missing > 0 {
		level = slog.LevelWarn
	}
	a.Logger.Log(ctx, level, "artifact summary",
		slog.Int("stale", stale),
		slog.Int("missing", missing))
}

// Stop cancels any running pipeline, drains the server and flushes telemetry
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// A running pipeline holds its request open; stop it first so Shutdown can drain
	a.Core.Pipeline.Close()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx, stop); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("received shutdown signal")

	stopCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	return a.Stop(stopCtx)
}
