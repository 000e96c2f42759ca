// Package services defines shared utilities consumed by the remux job phases
// and backend integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, phase names, track IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that separate per-track
//     failures (unroutable, pad refused, link failed) from job-level failures
//     (backend init, pipeline runtime).
//
// Use these helpers when wiring new job logic so failure classification and
// observability stay uniform across the engine.
package services
