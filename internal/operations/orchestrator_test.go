package operations_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rotationdash/internal/operations"
	"rotationdash/internal/operations/testutil"
)

func newOrchestrator(t *testing.T, runner operations.StageRunner, opts ...operations.Option) *operations.Orchestrator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	opts = append([]operations.Option{operations.WithLogger(logger)}, opts...)
	return operations.NewOrchestrator(runner, operations.DefaultCatalog("/srv/lundong", "python"), opts...)
}

func TestOrchestratorRun(t *testing.T) {
	tests := []struct {
		name             string
		stages           []operations.Stage
		failures         []string
		wantSucceeded    bool
		wantFailureIndex int
		wantExecuted     []string
	}{
		{
			name:             "all stages succeed",
			stages:           testutil.Stages("a", "b", "c"),
			wantSucceeded:    true,
			wantFailureIndex: operations.NoFailure,
			wantExecuted:     []string{"a", "b", "c"},
		},
		{
			name:             "allowed failure continues",
			stages:           testutil.Stages("a?", "b", "c"),
			failures:         []string{"a"},
			wantSucceeded:    true,
			wantFailureIndex: operations.NoFailure,
			wantExecuted:     []string{"a", "b", "c"},
		},
		{
			name:             "required failure stops the run",
			stages:           testutil.Stages("a", "b", "c", "d"),
			failures:         []string{"b"},
			wantSucceeded:    false,
			wantFailureIndex: 1,
			wantExecuted:     []string{"a", "b"},
		},
		{
			name:             "first required failure wins",
			stages:           testutil.Stages("a", "b", "c"),
			failures:         []string{"a", "c"},
			wantSucceeded:    false,
			wantFailureIndex: 0,
			wantExecuted:     []string{"a"},
		},
		{
			name:             "allowed then required failure",
			stages:           testutil.Stages("a?", "b", "c"),
			failures:         []string{"a", "c"},
			wantSucceeded:    false,
			wantFailureIndex: 2,
			wantExecuted:     []string{"a", "b", "c"},
		},
		{
			name:             "every failing stage is allowed",
			stages:           testutil.Stages("a?", "b?", "c?"),
			failures:         []string{"a", "b", "c"},
			wantSucceeded:    true,
			wantFailureIndex: operations.NoFailure,
			wantExecuted:     []string{"a", "b", "c"},
		},
		{
			name:             "empty sequence",
			stages:           nil,
			wantSucceeded:    true,
			wantFailureIndex: operations.NoFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := testutil.NewScriptedRunner()
			for _, name := range tt.failures {
				runner.Fail(name, operations.ErrorKindExecution, name+" failed: boom")
			}

			run := newOrchestrator(t, runner).Run(context.Background(), tt.stages)

			assert.Equal(t, tt.wantSucceeded, run.Succeeded)
			assert.Equal(t, tt.wantFailureIndex, run.FailureIndex)
			assert.Equal(t, tt.wantExecuted, runner.Executed())
			require.Len(t, run.Results, len(tt.wantExecuted))
			for i, res := range run.Results {
				assert.Equal(t, tt.wantExecuted[i], res.StageName)
			}
			assert.NotEmpty(t, run.ID)
			assert.False(t, run.FinishedAt.Before(run.StartedAt))
		})
	}
}

func TestOrchestratorEndToEndScenario(t *testing.T) {
	runner := testutil.NewScriptedRunner().
		Fail("A", operations.ErrorKindExecution, "A failed: network down").
		Fail("C", operations.ErrorKindTimeout, "C timed out after 1s and was terminated")

	stages := []operations.Stage{
		{Name: "A", ExecutablePath: "a.py", AllowFail: true},
		{Name: "B", ExecutablePath: "b.py"},
		{Name: "C", ExecutablePath: "c.py"},
		{Name: "D", ExecutablePath: "d.py"},
	}

	run := newOrchestrator(t, runner).Run(context.Background(), stages)

	assert.False(t, run.Succeeded)
	assert.Equal(t, 2, run.FailureIndex)
	require.Len(t, run.Results, 3)
	assert.True(t, run.Results[0].AllowFail)
	assert.Len(t, run.Warnings(), 1)
	assert.Equal(t, operations.ErrorKindTimeout, run.Results[2].Kind)

	ok, msg := run.Summary()
	assert.False(t, ok)
	assert.Equal(t, "step 3 failed: C timed out after 1s and was terminated", msg)
}

func TestOrchestratorRunNamed(t *testing.T) {
	tests := []struct {
		sequence string
		want     []string
	}{
		{operations.SequenceFull, []string{"download", "preprocess", "factor_engineering", "factor_analysis", "rotation_scores", "enhanced_backtest"}},
		{"", []string{"download", "preprocess", "factor_engineering", "factor_analysis", "rotation_scores", "enhanced_backtest"}},
		{operations.SequenceFactors, []string{"preprocess", "factor_engineering", "factor_analysis", "rotation_scores"}},
		{operations.SequenceSignal, []string{"rotation_scores"}},
		{operations.SequenceBacktest, []string{"enhanced_backtest"}},
	}

	for _, tt := range tests {
		t.Run(tt.sequence, func(t *testing.T) {
			runner := testutil.NewScriptedRunner()
			run, err := newOrchestrator(t, runner).RunNamed(context.Background(), tt.sequence)
			require.NoError(t, err)
			assert.True(t, run.Succeeded)
			assert.Equal(t, tt.want, runner.Executed())
		})
	}

	t.Run("unknown sequence", func(t *testing.T) {
		_, err := newOrchestrator(t, testutil.NewScriptedRunner()).RunNamed(context.Background(), "nope")
		assert.ErrorIs(t, err, operations.ErrUnknownSequence)
	})

	t.Run("factors stops on required failure", func(t *testing.T) {
		runner := testutil.NewScriptedRunner().
			Fail("factor_engineering", operations.ErrorKindExecution, "factor_engineering failed: KeyError")
		run, err := newOrchestrator(t, runner).RunNamed(context.Background(), operations.SequenceFactors)
		require.NoError(t, err)
		assert.False(t, run.Succeeded)
		assert.Equal(t, 1, run.FailureIndex)
		assert.Equal(t, []string{"preprocess", "factor_engineering"}, runner.Executed())
	})
}

func TestOrchestratorRunSingle(t *testing.T) {
	runner := testutil.NewScriptedRunner().
		Fail("download", operations.ErrorKindLaunch, "download could not start: no such file")
	orch := newOrchestrator(t, runner)

	result := orch.RunSingle(context.Background(), operations.Stage{Name: "download", AllowFail: true})
	assert.False(t, result.Succeeded)
	assert.Equal(t, operations.ErrorKindLaunch, result.Kind)

	res, err := orch.RunPosition(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "rotation_scores", res.StageName)

	_, err = orch.RunPosition(context.Background(), 7)
	assert.ErrorIs(t, err, operations.ErrStageNotFound)
	_, err = orch.RunPosition(context.Background(), 0)
	assert.ErrorIs(t, err, operations.ErrStageNotFound)
}

func TestOrchestratorObserver(t *testing.T) {
	runner := testutil.NewScriptedRunner().Fail("b", operations.ErrorKindExecution, "b failed")
	observer := &testutil.RecordingObserver{}

	newOrchestrator(t, runner, operations.WithObserver(observer)).
		Run(context.Background(), testutil.Stages("a", "b", "c"))

	assert.Equal(t, []string{"a", "b"}, observer.Started)
	require.Len(t, observer.Finished, 2)
	assert.True(t, observer.Finished[0].Succeeded)
	assert.False(t, observer.Finished[1].Succeeded)
}

func TestOrchestratorFillsStageName(t *testing.T) {
	runner := operations.StageRunnerFunc(func(ctx context.Context, stage operations.Stage) operations.StageResult {
		return operations.StageResult{Succeeded: true}
	})
	run := newOrchestrator(t, runner).Run(context.Background(), testutil.Stages("only"))
	require.Len(t, run.Results, 1)
	assert.Equal(t, "only", run.Results[0].StageName)
}
