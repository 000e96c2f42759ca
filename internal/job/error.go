package job

import (
	"errors"
	"strings"

	"mmx/internal/services"
)

// ErrorKind classifies a job-level failure.
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "configuration"
	KindBackendInit     ErrorKind = "backend_init"
	KindPipelineRuntime ErrorKind = "pipeline_runtime"
	KindNoLinkedTracks  ErrorKind = "no_linked_tracks"
	KindOutputLocked    ErrorKind = "output_locked"
	KindCancelled       ErrorKind = "cancelled"
)

// Error is returned for every job that does not complete. Per-track failures
// never produce one; they are listed in the Summary instead.
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		return msg + " (" + detail + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode maps the failure onto a process exit status.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindConfiguration:
		return 2
	case KindBackendInit:
		return 3
	case KindOutputLocked:
		return 4
	case KindCancelled:
		return 130
	default:
		return 1
	}
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, services.ErrCancelled):
		return KindCancelled
	case errors.Is(err, services.ErrNoLinkedTracks):
		return KindNoLinkedTracks
	case errors.Is(err, services.ErrOutputLocked):
		return KindOutputLocked
	case errors.Is(err, services.ErrBackendInit):
		return KindBackendInit
	case errors.Is(err, services.ErrConfiguration):
		return KindConfiguration
	default:
		return KindPipelineRuntime
	}
}

func newError(err error, detail string) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: classify(err), Message: err.Error(), Detail: detail, Err: err}
}
