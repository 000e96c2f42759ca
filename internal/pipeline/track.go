package pipeline

import (
	"mmx/internal/routing"
)

// TrackState is the lifecycle of one discovered stream.
type TrackState int

const (
	TrackDiscovered TrackState = iota
	TrackLinked
	TrackFailed
)

func (s TrackState) String() string {
	switch s {
	case TrackLinked:
		return "linked"
	case TrackFailed:
		return "failed"
	default:
		return "discovered"
	}
}

// FailureReason explains why a track did not reach the muxer.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonUnroutable
	ReasonMuxerPadRefused
	ReasonLinkFailed
)

func (r FailureReason) String() string {
	switch r {
	case ReasonUnroutable:
		return "unroutable"
	case ReasonMuxerPadRefused:
		return "muxer_pad_refused"
	case ReasonLinkFailed:
		return "link_failed"
	default:
		return ""
	}
}

// Track is one elementary stream discovered in the input. Tracks live for the
// whole job, even when they fail.
type Track struct {
	ID         int
	Pad        Pad
	Descriptor routing.Descriptor
	Decision   routing.Decision
	State      TrackState
	Reason     FailureReason
	Err        error
	MuxerPad   Pad

	decided bool
	chain   []Element
}

// TrackReport is a read-only copy of a track's outcome.
type TrackReport struct {
	ID       int
	Media    string
	Parser   routing.ParserKind
	Template routing.PadTemplate
	MuxerPad string
	State    TrackState
	Reason   FailureReason
	Error    string
}

func (t *Track) report() TrackReport {
	r := TrackReport{
		ID:       t.ID,
		Media:    t.Descriptor.Name(),
		Parser:   t.Decision.Parser,
		Template: t.Decision.PadTemplate,
		State:    t.State,
		Reason:   t.Reason,
	}
	if t.MuxerPad != nil {
		r.MuxerPad = t.MuxerPad.Name()
	}
	if t.Err != nil {
		r.Error = t.Err.Error()
	}
	return r
}
