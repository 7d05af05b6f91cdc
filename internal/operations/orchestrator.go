package operations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rotationdash/internal/infrastructure"
)

// TracerName is the instrumentation scope of orchestrator spans
const TracerName = "rotationdash.operations"

// Observer is notified as stages start and finish. Calls happen on the
// orchestrating goroutine, so implementations must not block.
type Observer interface {
	StageStarted(ctx context.Context, runID string, index int, stage Stage)
	StageFinished(ctx context.Context, runID string, index int, result StageResult)
}

// Orchestrator runs stages in order under the fail-fast-unless-allowed policy.
// It holds no per-run state; concurrent runs must be serialized by the caller.
type Orchestrator struct {
	runner   StageRunner
	catalog  *Catalog
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
	observer Observer
	now      func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for run and stage spans
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMetrics sets the pipeline metrics
func WithMetrics(metrics *infrastructure.PipelineMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithObserver sets the stage event observer
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// NewOrchestrator creates an orchestrator over catalog using runner
func NewOrchestrator(runner StageRunner, catalog *Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runner:  runner,
		catalog: catalog,
		logger:  slog.Default(),
		tracer:  otel.Tracer(TracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(slog.String("component", "orchestrator"))
	return o
}

// Catalog returns the stage catalog
func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// Run executes stages in order. An allowed failure is recorded as a warning
// and the run continues; the first required failure ends the run.
func (o *Orchestrator) Run(ctx context.Context, stages []Stage) PipelineRun {
	return o.run(ctx, "custom", stages)
}

// RunNamed runs a named catalog sequence under the same policy as Run.
func (o *Orchestrator) RunNamed(ctx context.Context, name string) (PipelineRun, error) {
	stages, err := o.catalog.Sequence(name)
	if err != nil {
		return PipelineRun{}, err
	}
	if name == "" {
		name = SequenceFull
	}
	return o.run(ctx, name, stages), nil
}

// RunSingle executes one stage outside any sequence. AllowFail has no effect
// here; the result is returned as is.
func (o *Orchestrator) RunSingle(ctx context.Context, stage Stage) StageResult {
	runID := uuid.New().String()
	ctx, span := o.tracer.Start(ctx, "pipeline.run_single",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage.name", stage.Name),
		))
	defer span.End()

	result := o.execute(ctx, runID, 0, stage)
	if !result.Succeeded {
		span.SetStatus(codes.Error, result.Message)
	}
	return result
}

// RunPosition executes the catalog stage at a 1-based position
func (o *Orchestrator) RunPosition(ctx context.Context, position int) (StageResult, error) {
	stage, err := o.catalog.StageAt(position)
	if err != nil {
		return StageResult{}, err
	}
	return o.RunSingle(ctx, stage), nil
}

func (o *Orchestrator) run(ctx context.Context, sequence string, stages []Stage) PipelineRun {
	run := PipelineRun{
		ID:           uuid.New().String(),
		Sequence:     sequence,
		Results:      make([]StageResult, 0, len(stages)),
		FailureIndex: NoFailure,
		StartedAt:    o.now(),
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("run.sequence", sequence),
			attribute.Int("run.stages", len(stages)),
		))
	defer span.End()

	o.metrics.RecordActive(ctx, 1)
	defer o.metrics.RecordActive(ctx, -1)

	o.logger.InfoContext(ctx, "pipeline_started",
		slog.String("run_id", run.ID),
		slog.String("sequence", sequence),
		slog.Int("stage_count", len(stages)))

	run.Succeeded = true
	for i, stage := range stages {
		result := o.execute(ctx, run.ID, i, stage)
		run.Results = append(run.Results, result)

		if result.Succeeded {
			continue
		}
		if stage.AllowFail {
			o.logger.WarnContext(ctx, "stage_failed_allowed",
				slog.String("run_id", run.ID),
				slog.Int("stage_number", i+1),
				slog.String("stage", stage.Name),
				slog.String("message", result.Message))
			span.AddEvent("stage.allowed_failure", trace.WithAttributes(
				attribute.String("stage.name", stage.Name)))
			continue
		}

		run.Succeeded = false
		run.FailureIndex = i
		span.SetStatus(codes.Error, result.Message)
		o.logger.ErrorContext(ctx, "pipeline_stopped",
			slog.String("run_id", run.ID),
			slog.Int("stage_number", i+1),
			slog.String("stage", stage.Name),
			slog.String("kind", string(result.Kind)),
			slog.String("message", result.Message))
		break
	}

	run.FinishedAt = o.now()
	o.metrics.RecordRun(ctx, sequence, run.Succeeded, run.Duration())

	_, summary := run.Summary()
	o.logger.InfoContext(ctx, "pipeline_finished",
		slog.String("run_id", run.ID),
		slog.Bool("succeeded", run.Succeeded),
		slog.Int("failure_index", run.FailureIndex),
		slog.Int("stages_run", len(run.Results)),
		slog.Duration("duration", run.Duration()),
		slog.String("summary", summary))

	return run
}

func (o *Orchestrator) execute(ctx context.Context, runID string, index int, stage Stage) StageResult {
	ctx, span := o.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("stage.name", stage.Name),
			attribute.Int("stage.index", index),
			attribute.Bool("stage.allow_fail", stage.AllowFail),
		))
	defer span.End()

	if o.observer != nil {
		o.observer.StageStarted(ctx, runID, index, stage)
	}
	o.logger.InfoContext(ctx, "executing_stage",
		slog.String("run_id", runID),
		slog.Int("stage_number", index+1),
		slog.String("stage", stage.Name),
		slog.Duration("timeout", stage.Timeout()))

	result := o.runner.Execute(ctx, stage)
	if result.StageName == "" {
		result.StageName = stage.Name
	}
	result.AllowFail = stage.AllowFail

	o.metrics.RecordStage(ctx, stage.Name, result.Outcome(), result.Duration)
	span.SetAttributes(attribute.String("stage.outcome", result.Outcome()))
	if !result.Succeeded {
		span.SetStatus(codes.Error, result.Message)
	} else {
		o.logger.InfoContext(ctx, "stage_succeeded",
			slog.String("run_id", runID),
			slog.String("stage", stage.Name),
			slog.Duration("duration", result.Duration))
	}

	if o.observer != nil {
		o.observer.StageFinished(ctx, runID, index, result)
	}
	return result
}
