package http

import (
	"context"

	"rotationdash/internal/artifacts"
	"rotationdash/internal/operations"
	"rotationdash/internal/services"
	"rotationdash/internal/signals"
)

// PipelineServiceInterface is what the pipeline handler needs from
// services.PipelineService
type PipelineServiceInterface interface {
	Stages() []operations.Stage
	Sequences() []operations.Sequence
	RunSequence(ctx context.Context, name string) (operations.PipelineRun, error)
	RunStage(ctx context.Context, position int) (operations.StageResult, error)
	Status() services.PipelineStatus
}

// DashboardServiceInterface is what the dashboard handler needs from
// services.DashboardService
type DashboardServiceInterface interface {
	Artifacts(ctx context.Context) []artifacts.ArtifactStatus
	Overview(ctx context.Context) (services.Overview, error)
	SignalStats(ctx context.Context) (signals.SignalStats, error)
	ReturnStats(ctx context.Context) (signals.ReturnStats, error)
	TopScores(ctx context.Context, n int) (services.TopScores, error)
	Symbols(ctx context.Context) ([]string, error)
	Markers(ctx context.Context, symbol string) (services.MarkerSet, error)
}
