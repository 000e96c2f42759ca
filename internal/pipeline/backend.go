package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mmx/internal/routing"
)

// Window is an optional time range applied to the whole job. A zero Stop
// means "to the end of the input".
type Window struct {
	Start time.Duration
	Stop  time.Duration
}

// IsZero reports whether the window covers the entire input.
func (w Window) IsZero() bool { return w.Start <= 0 && w.Stop <= 0 }

// Validate rejects negative and inverted ranges.
func (w Window) Validate() error {
	if w.Start < 0 || w.Stop < 0 {
		return fmt.Errorf("window bounds must be non-negative (start=%s stop=%s)", w.Start, w.Stop)
	}
	if w.Stop > 0 && w.Stop <= w.Start {
		return fmt.Errorf("window stop %s must be after start %s", w.Stop, w.Start)
	}
	return nil
}

// Span returns the length of the window given the full input duration.
func (w Window) Span(total time.Duration) time.Duration {
	stop := total
	if w.Stop > 0 && w.Stop < total {
		stop = w.Stop
	}
	if stop <= w.Start {
		return 0
	}
	return stop - w.Start
}

// Hints are advisory job parameters. Passthrough remuxing cannot change frame
// timing, so backends record or forward them but never fail on them.
type Hints struct {
	FrameRate float64
	CFR       bool
	Hardware  string
}

// Spec describes one remux job to a backend.
type Spec struct {
	Input  string
	Output string
	Muxer  routing.MuxerKind
	Hints  Hints
	Window Window
}

// State is the coarse execution state a backend reports.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "null"
	}
}

// MessageType enumerates control-bus messages the monitor reacts to.
type MessageType int

const (
	MessageNone MessageType = iota
	MessageStateChanged
	MessageError
	MessageEOS
)

// Message is one control-bus notification.
type Message struct {
	Type  MessageType
	State State
	Err   *BusError
}

// BusError is a runtime failure reported by the backend.
type BusError struct {
	Message  string
	Debug    string
	Category string
	Source   string
}

func (e *BusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := []string{strings.TrimSpace(e.Message)}
	if src := strings.TrimSpace(e.Source); src != "" {
		parts = append([]string{src}, parts...)
	}
	return strings.Join(parts, ": ")
}

// Execution is the control surface the monitor drives.
type Execution interface {
	Play() error
	Stop() error
	// Pop waits up to timeout for the next message. ok is false on timeout.
	Pop(timeout time.Duration) (msg Message, ok bool)
	Position() (time.Duration, bool)
	Duration() (time.Duration, bool)
}

// DiscoverFunc receives each stream the demuxer exposes. It may be called
// from backend worker goroutines, concurrently.
type DiscoverFunc func(pad Pad, desc routing.Descriptor)

// Session is an opened job graph: source, demuxer, muxer, and sink are in
// place; tracks are attached as they are discovered.
type Session interface {
	Builder() Builder
	Muxer() Element
	Execution() Execution
	// OnPadAdded installs the discovery callback. It must be set before Play.
	OnPadAdded(fn DiscoverFunc)
	// Describe renders the static chain for dry runs.
	Describe() string
	Close() error
}

// Backend opens sessions against an element library.
type Backend interface {
	Name() string
	// Check verifies the element kinds exist; missing kinds are a
	// backend init failure.
	Check(kinds []ElementKind) error
	Open(ctx context.Context, spec Spec) (Session, error)
}
