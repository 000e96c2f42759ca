package monitor

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrSinkClosed is returned for writes after the terminal event.
var ErrSinkClosed = errors.New("progress sink closed")

// Event names on the progress stream.
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventEnd      = "end"
	EventError    = "error"
)

type startEvent struct {
	Event  string `json:"event"`
	JobID  string `json:"job_id"`
	Muxer  string `json:"muxer"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

type progressEvent struct {
	Event      string   `json:"event"`
	PositionNS *uint64  `json:"position_ns"`
	DurationNS *uint64  `json:"duration_ns"`
	Pct        *float64 `json:"pct"`
}

type errorEvent struct {
	Event      string  `json:"event"`
	Status     string  `json:"status"`
	Error      string  `json:"error"`
	Debug      string  `json:"debug,omitempty"`
	PositionNS *uint64 `json:"position_ns"`
}

// Sink writes the machine-readable progress stream as JSON lines. The end or
// error event is always the last line; later writes are refused. A nil Sink
// or a Sink over a nil writer discards everything.
type Sink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closed bool
}

// NewSink wraps w. Pass nil to disable the stream.
func NewSink(w io.Writer) *Sink {
	s := &Sink{}
	if w != nil {
		s.enc = json.NewEncoder(w)
	}
	return s
}

// Start announces the job.
func (s *Sink) Start(jobID, muxer, input, output string) error {
	return s.write(false, startEvent{Event: EventStart, JobID: jobID, Muxer: muxer, Input: input, Output: output})
}

// Progress emits one progress snapshot.
func (s *Sink) Progress(snap Snapshot) error {
	return s.write(false, snap.event(EventProgress))
}

// End emits the terminal success event.
func (s *Sink) End(snap Snapshot) error {
	return s.write(true, snap.event(EventEnd))
}

// Fail emits the terminal failure event with status "failed".
func (s *Sink) Fail(message, debug string, position time.Duration) error {
	return s.write(true, errorEvent{Event: EventError, Status: StatusFailed.String(), Error: message, Debug: debug, PositionNS: nanos(position)})
}

// Cancel emits the terminal error event with status "cancelled".
func (s *Sink) Cancel(position time.Duration) error {
	return s.write(true, errorEvent{Event: EventError, Status: StatusCancelled.String(), Error: "cancelled", PositionNS: nanos(position)})
}

// Closed reports whether the terminal event was written.
func (s *Sink) Closed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Sink) write(terminal bool, v any) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if terminal {
		s.closed = true
	}
	if s.enc == nil {
		return nil
	}
	return s.enc.Encode(v)
}

func nanos(d time.Duration) *uint64 {
	if d < 0 {
		d = 0
	}
	n := uint64(d)
	return &n
}
