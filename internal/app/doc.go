// Package app wires the rotation dashboard together and manages its
// lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, the YAML file and the environment
//  2. Initialize logging and OpenTelemetry
//  3. Resolve the project root (required in local mode)
//  4. Build the stage catalog, orchestrator and artifact access (BuildCore)
//  5. Set up middleware, handlers and the websocket hub
//  6. Start the HTTP server
//
// BuildCore is also used by the command-line client, which runs the same
// orchestrator in-process without the HTTP layer.
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the running pipeline is cancelled first, which kills
// its child process, then the server drains, websocket clients are closed
// and telemetry is flushed.
package app
