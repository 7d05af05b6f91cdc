// Package signals loads the dashboard tables produced by the pipeline and
// aligns trade signals to a price series for plotting.
//
// Alignment only looks forward in time: a signal on a non-trading day
// snaps to the next available price, never to an earlier one.
package signals
