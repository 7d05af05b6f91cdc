package operations

import (
	"fmt"
	"time"
)

// NoFailure is the FailureIndex of a run without a fatal stage failure.
const NoFailure = -1

// DefaultStageTimeout applies when a stage declares no timeout.
const DefaultStageTimeout = 300 * time.Second

// Stage describes one external processing step. Stages are ordered; each
// stage reads files the previous ones wrote.
type Stage struct {
	Name             string   `yaml:"name" json:"name" validate:"required"`
	Command          string   `yaml:"command" json:"command,omitempty"`
	ExecutablePath   string   `yaml:"executable" json:"executable_path" validate:"required"`
	WorkingDirectory string   `yaml:"working_directory" json:"working_directory"`
	TimeoutSeconds   int      `yaml:"timeout_seconds" json:"timeout_seconds" default:"300" validate:"gt=0"`
	AllowFail        bool     `yaml:"allow_fail" json:"allow_fail"`
	ExtraArguments   []string `yaml:"args" json:"extra_arguments,omitempty"`
	SuccessMessage   string   `yaml:"success_message" json:"success_message,omitempty"`
}

// Timeout returns the stage time budget
func (s Stage) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return DefaultStageTimeout
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// CommandLine returns the program and arguments to spawn. With a Command
// (an interpreter) the executable path becomes its first argument.
func (s Stage) CommandLine() (string, []string) {
	if s.Command == "" {
		return s.ExecutablePath, append([]string(nil), s.ExtraArguments...)
	}
	args := make([]string, 0, len(s.ExtraArguments)+1)
	args = append(args, s.ExecutablePath)
	args = append(args, s.ExtraArguments...)
	return s.Command, args
}

func (s Stage) successText() string {
	if s.SuccessMessage != "" {
		return s.SuccessMessage
	}
	return s.Name + " completed"
}

// StageResult is the outcome of one execution attempt.
type StageResult struct {
	StageName string        `json:"stage_name"`
	Succeeded bool          `json:"succeeded"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
	Kind      ErrorKind     `json:"error_kind,omitempty"`
	AllowFail bool          `json:"allow_fail"`
}

// Outcome labels the result for metrics and logs
func (r StageResult) Outcome() string {
	if r.Succeeded {
		return "success"
	}
	return string(r.Kind)
}

// PipelineRun aggregates the results of one orchestrated run. It is built by
// the orchestrator and handed to the caller; nothing keeps it afterwards.
type PipelineRun struct {
	ID           string        `json:"id"`
	Sequence     string        `json:"sequence"`
	Results      []StageResult `json:"results"`
	Succeeded    bool          `json:"succeeded"`
	FailureIndex int           `json:"failure_index"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Warnings returns the allowed failures recorded in the run
func (r PipelineRun) Warnings() []StageResult {
	var warnings []StageResult
	for _, res := range r.Results {
		if !res.Succeeded && res.AllowFail {
			warnings = append(warnings, res)
		}
	}
	return warnings
}

// Summary reduces the run to the success flag and one human-readable line.
func (r PipelineRun) Summary() (bool, string) {
	if r.FailureIndex != NoFailure && r.FailureIndex < len(r.Results) {
		return false, fmt.Sprintf("step %d failed: %s", r.FailureIndex+1, r.Results[r.FailureIndex].Message)
	}
	if !r.Succeeded {
		return false, "pipeline did not complete"
	}
	if n := len(r.Warnings()); n > 0 {
		return true, fmt.Sprintf("all steps completed (%d allowed failure(s), existing data used)", n)
	}
	return true, "all steps completed"
}

// Duration is the wall time of the run
func (r PipelineRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
