// Package http implements the HTTP handlers of the rotation dashboard.
// Handlers stay thin: they parse the request, call a service and render
// the result with go-chi/render.
//
// # Routes
//
//	GET  /api/pipeline/stages            catalog with 1-based positions
//	GET  /api/pipeline/sequences         runnable sequences, "full" first
//	GET  /api/pipeline/status            trigger state and last run
//	POST /api/pipeline/run               {"sequence":"full"} -> PipelineRun
//	POST /api/pipeline/stages/{index}/run -> StageResult
//	GET  /api/artifacts                  statuses with freshness
//	GET  /api/overview                   every table plus missing keys
//	GET  /api/scores/top?n=3
//	GET  /api/returns/stats
//	GET  /api/signals/stats|symbols|markers?symbol=|markers.xlsx?symbol=
//
// # Error Handling
//
// Every failure goes through errors.ErrorHandler and is returned as RFC 7807
// Problem Details. A trigger while a run is in progress answers 409, a
// trigger in remote mode answers 403, and a table the pipeline has not
// produced yet answers 404:
//
//	{
//	    "type": "/errors/pipeline/already-running",
//	    "title": "Pipeline Busy",
//	    "status": 409,
//	    "instance": "/api/pipeline/run",
//	    "trace_id": "..."
//	}
package http
