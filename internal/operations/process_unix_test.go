//go:build unix

package operations

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecRunnerTimeoutKillsSpawnedProcesses(t *testing.T) {
	stage := shellStage(t, "factor_analysis", "(sleep 2; echo late > late.txt) & wait")
	stage.TimeoutSeconds = 1

	start := time.Now()
	result := NewExecRunner(nil).Execute(context.Background(), stage)

	assert.Equal(t, ErrorKindTimeout, result.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)

	time.Sleep(2500 * time.Millisecond)
	_, err := os.Stat(filepath.Join(stage.WorkingDirectory, "late.txt"))
	assert.True(t, os.IsNotExist(err), "background process outlived the stage timeout")
}

func TestExecRunnerCancelKillsSpawnedProcesses(t *testing.T) {
	stage := shellStage(t, "factor_analysis", "(sleep 2; echo late > late.txt) & wait")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	result := NewExecRunner(nil).Execute(ctx, stage)
	assert.Equal(t, ErrorKindCancelled, result.Kind)

	time.Sleep(2500 * time.Millisecond)
	_, err := os.Stat(filepath.Join(stage.WorkingDirectory, "late.txt"))
	assert.True(t, os.IsNotExist(err))
}
