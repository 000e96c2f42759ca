// Package manifest persists a crash-safe completion record for a remux job.
//
// The manifest is a caller-owned JSON object. Checkpoint only adds
// completed_at and output_size, preserves every other field, and swaps the
// file in with a same-directory rename so a crash never leaves it half
// written.
package manifest
