package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"rotationdash/internal/operations"
)

// StageCheck is the preflight outcome for one catalog stage
type StageCheck struct {
	Position int      `json:"position"`
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

// StageValidator checks that stage scripts and their working directories
// are in place before anything is spawned.
type StageValidator struct {
	logger *slog.Logger
}

// NewStageValidator creates a new stage validator
func NewStageValidator(logger *slog.Logger) *StageValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageValidator{
		logger: logger,
	}
}

// ValidateWorkingDirectory validates that dir exists and is a directory
func (v *StageValidator) ValidateWorkingDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Debug("Working directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("working directory %s does not exist", dir)
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateExecutable checks that a stage script exists and is readable
func (v *StageValidator) ValidateExecutable(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Debug("Stage script does not exist",
			slog.String("file", path))
		return fmt.Errorf("script %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat script %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a script", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("script %s is not readable: %w", path, err)
	}
	file.Close()
	return nil
}

// ValidateStage returns every problem found for stage joined into one error
func (v *StageValidator) ValidateStage(stage operations.Stage) error {
	var errs []error
	if stage.WorkingDirectory != "" {
		if err := v.ValidateWorkingDirectory(stage.WorkingDirectory); err != nil {
			errs = append(errs, err)
		}
	}
	if err := v.ValidateExecutable(stage.ExecutablePath); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Check validates every stage in catalog order. Positions are 1-based.
func (v *StageValidator) Check(stages []operations.Stage) []StageCheck {
	checks := make([]StageCheck, 0, len(stages))
	failed := 0
	for i, stage := range stages {
		check := StageCheck{Position: i + 1, Name: stage.Name, OK: true}
		if err := v.ValidateStage(stage); err != nil {
			check.OK = false
			check.Problems = problems(err)
			failed++
		}
		checks = append(checks, check)
	}

	v.logger.Info("Stage preflight completed",
		slog.Int("stages", len(stages)),
		slog.Int("failed", failed))
	return checks
}

func problems(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		out := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
