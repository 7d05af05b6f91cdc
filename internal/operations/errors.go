package operations

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies a stage failure
type ErrorKind string

const (
	ErrorKindTimeout   ErrorKind = "stage_timeout"
	ErrorKindExecution ErrorKind = "stage_execution_failure"
	ErrorKindLaunch    ErrorKind = "stage_launch_failure"
	ErrorKindCancelled ErrorKind = "stage_cancelled"
)

// Catalog lookup errors
var (
	ErrUnknownSequence = errors.New("unknown stage sequence")
	ErrStageNotFound   = errors.New("stage not found")
)

// stderrLimit bounds how much of a failing stage's error stream is kept.
const stderrLimit = 200

// StageError describes why a stage did not succeed
type StageError struct {
	Kind     ErrorKind
	Stage    string
	Message  string
	ExitCode int
	Cause    error
}

// Error implements the error interface
func (e *StageError) Error() string {
	if e == nil {
		return "unknown stage error"
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewTimeoutError reports a stage killed after exceeding its budget
func NewTimeoutError(stage string, timeout time.Duration) *StageError {
	return &StageError{
		Kind:     ErrorKindTimeout,
		Stage:    stage,
		Message:  fmt.Sprintf("%s timed out after %s and was terminated", stage, timeout),
		ExitCode: -1,
	}
}

// NewExecutionError reports a stage that ran and exited non-zero
func NewExecutionError(stage string, exitCode int, stderr string) *StageError {
	detail := truncate(strings.TrimSpace(stderr), stderrLimit)
	if detail == "" {
		detail = fmt.Sprintf("exit status %d", exitCode)
	}
	return &StageError{
		Kind:     ErrorKindExecution,
		Stage:    stage,
		Message:  fmt.Sprintf("%s failed: %s", stage, detail),
		ExitCode: exitCode,
	}
}

// NewLaunchError reports a stage whose process could not be started
func NewLaunchError(stage string, cause error) *StageError {
	return &StageError{
		Kind:     ErrorKindLaunch,
		Stage:    stage,
		Message:  fmt.Sprintf("%s could not start: %v", stage, cause),
		ExitCode: -1,
		Cause:    cause,
	}
}

// NewCancellationError reports a stage stopped because its caller went away
func NewCancellationError(stage string, cause error) *StageError {
	return &StageError{
		Kind:     ErrorKindCancelled,
		Stage:    stage,
		Message:  fmt.Sprintf("%s cancelled: %v", stage, cause),
		ExitCode: -1,
		Cause:    cause,
	}
}

// Result converts the error into the failed StageResult it represents
func (e *StageError) Result(duration time.Duration) StageResult {
	return StageResult{
		StageName: e.Stage,
		Succeeded: false,
		Message:   e.Message,
		Duration:  duration,
		Kind:      e.Kind,
	}
}

// ErrorKindOf returns the kind of a *StageError anywhere in err's chain
func ErrorKindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsTimeout reports whether err is a stage timeout
func IsTimeout(err error) bool {
	return ErrorKindOf(err) == ErrorKindTimeout
}

// truncate keeps the first n runes of s
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
