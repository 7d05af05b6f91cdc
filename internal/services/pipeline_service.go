package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"rotationdash/internal/infrastructure"
	"rotationdash/internal/operations"
)

// PipelineStatus is a snapshot of trigger state
type PipelineStatus struct {
	Running   bool                    `json:"running"`
	Current   string                  `json:"current,omitempty"`
	StartedAt *time.Time              `json:"started_at,omitempty"`
	ReadOnly  bool                    `json:"read_only"`
	LastRun   *operations.PipelineRun `json:"last_run,omitempty"`
}

// PipelineService serializes pipeline triggers. At most one run or single
// stage executes at a time; a second trigger is rejected, not queued.
type PipelineService struct {
	orchestrator *operations.Orchestrator
	sem          *semaphore.Weighted
	readOnly     bool
	metrics      *infrastructure.PipelineMetrics
	logger       *slog.Logger

	// lifetime bounds every run so shutdown can stop child processes
	lifetime context.Context
	stop     context.CancelFunc

	mu        sync.RWMutex
	current   string
	startedAt time.Time
	lastRun   *operations.PipelineRun
}

// PipelineServiceOptions configures a PipelineService
type PipelineServiceOptions struct {
	// ReadOnly rejects every trigger; set in remote source mode
	ReadOnly bool
	Metrics  *infrastructure.PipelineMetrics
	Logger   *slog.Logger
}

// NewPipelineService creates a service over orchestrator
func NewPipelineService(orchestrator *operations.Orchestrator, opts PipelineServiceOptions) *PipelineService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifetime, stop := context.WithCancel(context.Background())
	return &PipelineService{
		orchestrator: orchestrator,
		sem:          semaphore.NewWeighted(1),
		readOnly:     opts.ReadOnly,
		metrics:      opts.Metrics,
		logger:       logger.With(slog.String("component", "pipeline_service")),
		lifetime:     lifetime,
		stop:         stop,
	}
}

// Stages returns the stage catalog
func (s *PipelineService) Stages() []operations.Stage {
	return s.orchestrator.Catalog().Stages()
}

// Sequences returns the named sequences
func (s *PipelineService) Sequences() []operations.Sequence {
	return s.orchestrator.Catalog().Sequences()
}

// ReadOnly reports whether triggers are disabled
func (s *PipelineService) ReadOnly() bool {
	return s.readOnly
}

// RunSequence runs a named sequence. It blocks for the whole run; a client
// going away does not abort it, only Close does.
func (s *PipelineService) RunSequence(ctx context.Context, name string) (operations.PipelineRun, error) {
	if _, err := s.orchestrator.Catalog().Sequence(name); err != nil {
		return operations.PipelineRun{}, err
	}
	if name == "" {
		name = operations.SequenceFull
	}

	release, err := s.acquire(ctx, name)
	if err != nil {
		return operations.PipelineRun{}, err
	}
	defer release()

	runCtx, cancel := s.detach(ctx)
	defer cancel()

	run, err := s.orchestrator.RunNamed(runCtx, name)
	if err != nil {
		return operations.PipelineRun{}, err
	}

	s.mu.Lock()
	s.lastRun = &run
	s.mu.Unlock()
	return run, nil
}

// RunStage runs the catalog stage at a 1-based position on its own
func (s *PipelineService) RunStage(ctx context.Context, position int) (operations.StageResult, error) {
	stage, err := s.orchestrator.Catalog().StageAt(position)
	if err != nil {
		return operations.StageResult{}, err
	}

	release, err := s.acquire(ctx, stage.Name)
	if err != nil {
		return operations.StageResult{}, err
	}
	defer release()

	runCtx, cancel := s.detach(ctx)
	defer cancel()
	return s.orchestrator.RunSingle(runCtx, stage), nil
}

// Status returns the current trigger state
func (s *PipelineService) Status() PipelineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := PipelineStatus{
		Running:  s.current != "",
		Current:  s.current,
		ReadOnly: s.readOnly,
		LastRun:  s.lastRun,
	}
	if st.Running {
		started := s.startedAt
		st.StartedAt = &started
	}
	return st
}

// Close cancels any in-flight run
func (s *PipelineService) Close() {
	s.stop()
}

func (s *PipelineService) acquire(ctx context.Context, what string) (func(), error) {
	if s.readOnly {
		s.metrics.RecordRejected(ctx, "read_only")
		s.logger.WarnContext(ctx, "trigger_rejected",
			slog.String("target", what),
			slog.String("reason", "read_only"))
		return nil, ErrReadOnly
	}
	if !s.sem.TryAcquire(1) {
		s.mu.RLock()
		current := s.current
		s.mu.RUnlock()
		s.metrics.RecordRejected(ctx, "busy")
		s.logger.WarnContext(ctx, "trigger_rejected",
			slog.String("target", what),
			slog.String("reason", "busy"),
			slog.String("running", current))
		return nil, ErrPipelineBusy
	}

	s.mu.Lock()
	s.current = what
	s.startedAt = time.Now()
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.current = ""
		s.mu.Unlock()
		s.sem.Release(1)
	}, nil
}

// detach keeps request values (trace ids, spans) but ties cancellation to
// the service lifetime instead of the caller.
func (s *PipelineService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.lifetime, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
