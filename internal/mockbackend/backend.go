package mockbackend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mmx/internal/pipeline"
	"mmx/internal/services"
)

// Backend is a scripted stand-in for the element library.
type Backend struct {
	script Script

	mu   sync.Mutex
	last *Session
}

// New returns a backend that opens sessions following script.
func New(script Script) *Backend {
	if script.EOSCount <= 0 {
		script.EOSCount = 1
	}
	return &Backend{script: script}
}

func (b *Backend) Name() string { return "mock" }

// Check fails when any requested kind is listed in Script.MissingKinds.
func (b *Backend) Check(kinds []pipeline.ElementKind) error {
	var missing []string
	for _, kind := range kinds {
		if containsKind(b.script.MissingKinds, kind) {
			missing = append(missing, string(kind))
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrBackendInit, "preflight", "check elements",
			"missing "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func (b *Backend) Open(ctx context.Context, spec pipeline.Spec) (pipeline.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.Input) == "" {
		return nil, services.Wrap(services.ErrBackendInit, "open", "", "input path is empty", nil)
	}
	s := newSession(b.script, spec)
	b.mu.Lock()
	b.last = s
	b.mu.Unlock()
	return s, nil
}

// LastSession returns the most recently opened session, for inspection.
func (b *Backend) LastSession() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Element is a mock graph node.
type Element struct {
	name string
	kind pipeline.ElementKind
}

func (e *Element) Name() string               { return e.name }
func (e *Element) Kind() pipeline.ElementKind { return e.kind }

// Pad is a mock connection point. Stream pads carry the index of the stream
// they expose; muxer pads carry the index of the track they were requested
// for, in request order.
type Pad struct {
	name   string
	stream int
}

func (p *Pad) Name() string { return p.name }

func (p *Pad) String() string { return fmt.Sprintf("%s(%d)", p.name, p.stream) }

// NewStreamPad builds a demuxer source pad for driving an assembler directly.
func NewStreamPad(index int) *Pad {
	return &Pad{name: fmt.Sprintf("stream%d", index), stream: index}
}
