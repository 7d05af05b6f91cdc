// Package artifacts locates the files produced by pipeline stages and
// reports their existence and age.
//
// Probe stats the local filesystem and RemoteProbe issues HEAD requests
// against a published mirror. Neither caches: artifacts are written by
// processes outside this one, so each call reflects the current state.
// Freshness thresholds live here and nowhere else.
//
// Source implementations open artifact contents for the table loaders in
// package signals.
package artifacts
