package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"rotationdash/internal/config"
)

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual component health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthService reports liveness and readiness
type HealthService struct {
	version   string
	cfg       *config.Config
	pipeline  *PipelineService
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service. pipeline may be nil.
func NewHealthService(version string, cfg *config.Config, pipeline *PipelineService, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		cfg:       cfg,
		pipeline:  pipeline,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["project"] = hs.checkProject()
	if hs.pipeline != nil {
		ps := hs.pipeline.Status()
		state := "idle"
		if ps.Running {
			state = "running " + ps.Current
		}
		status.Services["pipeline"] = ServiceHealth{Status: "ready", Message: state}
	}

	for _, svc := range status.Services {
		if sh, ok := svc.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "degraded"
		}
	}

	hs.logger.DebugContext(ctx, "health_check",
		slog.String("status", status.Status),
		slog.Duration("uptime", time.Since(hs.startTime)))
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(hs.startTime).Seconds(),
		"start_time": hs.startTime.Format(time.RFC3339),
	}
	if hs.cfg != nil {
		result["source_mode"] = hs.cfg.Source.Mode
	}
	return result
}

func (hs *HealthService) checkProject() ServiceHealth {
	if hs.cfg == nil {
		return ServiceHealth{Status: "ready"}
	}
	if hs.cfg.Remote() {
		return ServiceHealth{Status: "ready", Message: "remote source " + hs.cfg.Source.BaseURL}
	}
	if !config.DirExists(hs.cfg.Project.Root) {
		return ServiceHealth{Status: "not_ready", Message: "project root not found: " + hs.cfg.Project.Root}
	}
	return ServiceHealth{Status: "ready", Message: hs.cfg.Project.Root}
}
