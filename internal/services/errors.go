package services

import (
	"errors"
	"fmt"
	"strings"
)

// Per-track markers. A track failing with one of these never fails the job.
var (
	ErrUnroutable      = errors.New("unroutable stream")
	ErrMuxerPadRefused = errors.New("muxer pad refused")
	ErrLinkFailed      = errors.New("link failed")
)

// Job-level markers.
var (
	ErrBackendInit     = errors.New("backend init error")
	ErrPipelineRuntime = errors.New("pipeline runtime error")
	ErrNoLinkedTracks  = errors.New("no linked tracks")
	ErrOutputLocked    = errors.New("output locked")
	ErrCancelled       = errors.New("cancelled")
	ErrConfiguration   = errors.New("configuration error")
)

// ErrManifestWrite tags checkpoint persistence failures. Callers log it and
// carry on; it never fails a job.
var ErrManifestWrite = errors.New("manifest write error")

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPipelineRuntime
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTrackFailure reports whether err carries one of the per-track markers.
func IsTrackFailure(err error) bool {
	return errors.Is(err, ErrUnroutable) ||
		errors.Is(err, ErrMuxerPadRefused) ||
		errors.Is(err, ErrLinkFailed)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
