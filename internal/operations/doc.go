// Package operations runs the data-refresh pipeline.
//
// A Stage is one external program with a working directory, arguments, a
// time budget and an AllowFail flag. A StageRunner executes a single stage
// and folds every outcome into a StageResult; ExecRunner is the process
// implementation.
//
// The Orchestrator walks a stage list strictly forward:
//
//   - a success moves on to the next stage
//   - a failure of an AllowFail stage is logged as a warning and the run
//     continues on whatever artifacts already exist
//   - any other failure stops the run and sets PipelineRun.FailureIndex
//
// Nothing is retried. Named subsequences such as "factors" and "signal" come
// from the Catalog and use the same policy.
//
// Example usage:
//
//	catalog := operations.DefaultCatalog(root, "python")
//	orch := operations.NewOrchestrator(operations.NewExecRunner(logger), catalog,
//		operations.WithLogger(logger))
//	run, err := orch.RunNamed(ctx, operations.SequenceSignal)
package operations
