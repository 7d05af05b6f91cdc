// Package shared holds helpers used by more than one package that belong to
// no single domain layer.
//
// testutil provides a capturing slog handler for asserting on structured
// log output in tests.
package shared
