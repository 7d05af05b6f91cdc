package testutil

import (
	"context"
	"sync"
	"time"

	"rotationdash/internal/operations"
)

// ScriptedRunner returns canned results per stage name and records calls
type ScriptedRunner struct {
	mu      sync.Mutex
	Results map[string]operations.StageResult
	Calls   []string
	// Block, when set, is waited on before each execution returns.
	Block chan struct{}
}

// NewScriptedRunner creates a runner where every stage succeeds unless scripted
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{Results: make(map[string]operations.StageResult)}
}

// Fail scripts a failure of the given kind for a stage
func (r *ScriptedRunner) Fail(stage string, kind operations.ErrorKind, message string) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results[stage] = operations.StageResult{
		StageName: stage,
		Succeeded: false,
		Message:   message,
		Kind:      kind,
		Duration:  time.Millisecond,
	}
	return r
}

// Execute implements operations.StageRunner
func (r *ScriptedRunner) Execute(ctx context.Context, stage operations.Stage) operations.StageResult {
	r.mu.Lock()
	r.Calls = append(r.Calls, stage.Name)
	result, scripted := r.Results[stage.Name]
	block := r.Block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	if scripted {
		return result
	}
	return operations.StageResult{
		StageName: stage.Name,
		Succeeded: true,
		Message:   stage.Name + " completed",
		Duration:  time.Millisecond,
	}
}

// Executed returns the stage names executed so far
func (r *ScriptedRunner) Executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Calls...)
}

// Stages builds simple stages for tests; names ending in "?" allow failure
func Stages(names ...string) []operations.Stage {
	stages := make([]operations.Stage, 0, len(names))
	for _, name := range names {
		allow := false
		if len(name) > 0 && name[len(name)-1] == '?' {
			allow = true
			name = name[:len(name)-1]
		}
		stages = append(stages, operations.Stage{
			Name:           name,
			ExecutablePath: name + ".py",
			TimeoutSeconds: 1,
			AllowFail:      allow,
		})
	}
	return stages
}

// RecordingObserver captures orchestrator events
type RecordingObserver struct {
	mu       sync.Mutex
	Started  []string
	Finished []operations.StageResult
}

// StageStarted implements operations.Observer
func (o *RecordingObserver) StageStarted(_ context.Context, _ string, _ int, stage operations.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Started = append(o.Started, stage.Name)
}

// StageFinished implements operations.Observer
func (o *RecordingObserver) StageFinished(_ context.Context, _ string, _ int, result operations.StageResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Finished = append(o.Finished, result)
}
