// Package logging assembles structured slog loggers and formatting helpers used
// across genguard.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag log
// lines with request ids and segment indexes. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
