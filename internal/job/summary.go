package job

import (
	"time"

	"mmx/internal/monitor"
	"mmx/internal/pipeline"
	"mmx/internal/preflight"
	"mmx/internal/routing"
)

// Summary describes a finished (or refused) job.
type Summary struct {
	JobID      string
	Input      string
	Output     string
	Manifest   string
	Muxer      routing.MuxerKind
	Backend    string
	Hints      pipeline.Hints
	Window     pipeline.Window
	Status     monitor.Status
	State      monitor.RunState
	Final      monitor.Snapshot
	StartedAt  time.Time
	FinishedAt time.Time
	Tracks     []pipeline.TrackReport
	OutputSize *int64
	Preflight  []preflight.Result
	// Plan is the static chain description; only set for dry runs.
	Plan string
	Err  *Error
}

// Linked returns the tracks that reached the muxer.
func (s *Summary) Linked() []pipeline.TrackReport {
	return s.filter(pipeline.TrackLinked)
}

// Failed returns the tracks that were skipped or rolled back.
func (s *Summary) Failed() []pipeline.TrackReport {
	return s.filter(pipeline.TrackFailed)
}

func (s *Summary) filter(state pipeline.TrackState) []pipeline.TrackReport {
	var out []pipeline.TrackReport
	for _, t := range s.Tracks {
		if t.State == state {
			out = append(out, t)
		}
	}
	return out
}

// StatusLabel is the ledger status string.
func (s *Summary) StatusLabel() string {
	if s.Err != nil && s.Err.Kind == KindCancelled {
		return monitor.StatusCancelled.String()
	}
	if s.Err != nil {
		return monitor.StatusFailed.String()
	}
	return s.Status.String()
}
