// Package logging assembles structured slog loggers and formatting helpers used
// across mmx.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so the runner, assembler, and monitor can
// tag log lines with job IDs, track IDs, and stages. Logs default to stderr:
// stdout is reserved for the machine-readable progress stream. The package
// also provides a no-op logger for tests and a sampler that keeps progress
// logging to one line per percentage bucket.
package logging
