package operations

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// StageRunner executes a single stage to completion.
type StageRunner interface {
	Execute(ctx context.Context, stage Stage) StageResult
}

// StageRunnerFunc adapts a function to StageRunner
type StageRunnerFunc func(ctx context.Context, stage Stage) StageResult

// Execute calls f(ctx, stage)
func (f StageRunnerFunc) Execute(ctx context.Context, stage Stage) StageResult {
	return f(ctx, stage)
}

// killGrace bounds how long Wait keeps reading pipes after the stage process
// has been killed, since orphaned grandchildren may still hold them open.
const killGrace = 5 * time.Second

// ExecRunner runs stages as child processes
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner creates a runner that spawns real processes
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger.With(slog.String("component", "stage_runner"))}
}

// Execute blocks until the stage process exits or its timeout elapses. It
// never returns an error; every failure is folded into the result.
func (r *ExecRunner) Execute(ctx context.Context, stage Stage) StageResult {
	timeout := stage.Timeout()
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, args := stage.CommandLine()
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = stage.WorkingDirectory
	cmd.WaitDelay = killGrace
	killProcessGroup(cmd)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	r.logger.DebugContext(ctx, "spawning_stage",
		slog.String("stage", stage.Name),
		slog.String("command", name),
		slog.Any("args", args),
		slog.String("dir", stage.WorkingDirectory),
		slog.Duration("timeout", timeout))

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	// A clean exit wins over pipe-drain errors such as exec.ErrWaitDelay
	// caused by a background child still holding stderr.
	if err != nil && exitedCleanly(cmd) {
		r.logger.WarnContext(ctx, "stage_output_not_drained",
			slog.String("stage", stage.Name),
			slog.String("error", err.Error()))
		err = nil
	}

	if err == nil {
		return StageResult{
			StageName: stage.Name,
			Succeeded: true,
			Message:   stage.successText(),
			Duration:  duration,
			AllowFail: stage.AllowFail,
		}
	}

	stageErr := classify(ctx, runCtx, stage, timeout, err, stderr.String())
	r.logger.DebugContext(ctx, "stage_process_failed",
		slog.String("stage", stage.Name),
		slog.String("kind", string(stageErr.Kind)),
		slog.Int("exit_code", stageErr.ExitCode),
		slog.String("error", err.Error()))

	result := stageErr.Result(duration)
	result.AllowFail = stage.AllowFail
	return result
}

func exitedCleanly(cmd *exec.Cmd) bool {
	return cmd.ProcessState != nil && cmd.ProcessState.Success()
}

// classify maps a process error onto a stage error kind. The parent context
// is checked first so a caller cancellation is not mistaken for a timeout.
func classify(parent, runCtx context.Context, stage Stage, timeout time.Duration, err error, stderr string) *StageError {
	if parent.Err() != nil {
		return NewCancellationError(stage.Name, parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError(stage.Name, timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewExecutionError(stage.Name, exitErr.ExitCode(), stderr)
	}
	return NewLaunchError(stage.Name, err)
}
