package mockbackend

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"mmx/internal/pipeline"
	"mmx/internal/routing"
)

// Session is a scripted job graph. It implements pipeline.Session,
// pipeline.Builder, and pipeline.Execution.
type Session struct {
	script Script
	spec   pipeline.Spec
	muxer  *Element

	mu        sync.Mutex
	discover  pipeline.DiscoverFunc
	seq       int
	added     map[*Element]struct{}
	removed   []string
	links     []string
	released  []string
	requested []*Pad
	playing   bool
	stopped   bool
	closed    bool
	addCalls  int
	ticks     int
	position  time.Duration
	done      bool

	msgs       chan pipeline.Message
	discovered chan struct{}
}

func newSession(script Script, spec pipeline.Spec) *Session {
	s := &Session{
		script:     script,
		spec:       spec,
		added:      make(map[*Element]struct{}),
		msgs:       make(chan pipeline.Message, 64),
		discovered: make(chan struct{}),
	}
	s.muxer = &Element{name: "mux", kind: pipeline.MuxerElement(spec.Muxer)}
	return s
}

func (s *Session) Builder() pipeline.Builder     { return s }
func (s *Session) Muxer() pipeline.Element       { return s.muxer }
func (s *Session) Execution() pipeline.Execution { return s }

func (s *Session) OnPadAdded(fn pipeline.DiscoverFunc) {
	s.mu.Lock()
	s.discover = fn
	s.mu.Unlock()
}

func (s *Session) Describe() string {
	return fmt.Sprintf("mocksrc location=%q ! mockdemux ! (queue ! parser) x%d ! %s ! filesink location=%q",
		s.spec.Input, len(s.script.Streams), s.muxer.kind, s.spec.Output)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}

// Builder

func (s *Session) Make(kind pipeline.ElementKind) (pipeline.Element, error) {
	if containsKind(s.script.FailMake, kind) {
		return nil, fmt.Errorf("no such element factory %q", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return &Element{name: fmt.Sprintf("%s%d", kind, s.seq), kind: kind}, nil
}

func (s *Session) Add(elems ...pipeline.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.addCalls
	s.addCalls++
	if containsInt(s.script.FailAddCalls, call) {
		return fmt.Errorf("bin refused %d elements", len(elems))
	}
	for _, e := range elems {
		s.added[e.(*Element)] = struct{}{}
	}
	return nil
}

func (s *Session) Remove(elems ...pipeline.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range elems {
		el := e.(*Element)
		if _, ok := s.added[el]; !ok {
			continue
		}
		delete(s.added, el)
		s.removed = append(s.removed, el.name)
	}
	return nil
}

func (s *Session) Sync(...pipeline.Element) error { return nil }

func (s *Session) LinkPad(src pipeline.Pad, sink pipeline.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, src.Name()+"->"+sink.Name())
	return nil
}

func (s *Session) Link(src, sink pipeline.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, src.Name()+"->"+sink.Name())
	return nil
}

func (s *Session) RequestPad(muxer pipeline.Element, template routing.PadTemplate) (pipeline.Pad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if containsTemplate(s.script.RefuseTemplates, template) {
		return nil, fmt.Errorf("%s has no free %s pad", muxer.Name(), template)
	}
	index := len(s.requested)
	if containsInt(s.script.ShareFirstPadOn, index) && index > 0 {
		return s.requested[0], nil
	}
	name := strings.Replace(string(template), "%u", fmt.Sprint(s.countTemplateLocked(template)), 1)
	pad := &Pad{name: name, stream: index}
	s.requested = append(s.requested, pad)
	return pad, nil
}

func (s *Session) countTemplateLocked(template routing.PadTemplate) int {
	prefix := strings.TrimSuffix(string(template), "%u")
	n := 0
	for _, p := range s.requested {
		if strings.HasPrefix(p.name, prefix) {
			n++
		}
	}
	return n
}

func (s *Session) LinkToPad(src pipeline.Element, sink pipeline.Pad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pad := sink.(*Pad)
	if containsInt(s.script.FailMuxLinkRequests, pad.stream) {
		return fmt.Errorf("caps of %s not accepted by %s", src.Name(), pad.name)
	}
	s.links = append(s.links, src.Name()+"->"+pad.name)
	return nil
}

func (s *Session) ReleasePad(_ pipeline.Element, pad pipeline.Pad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, pad.Name())
	return nil
}

// Execution

func (s *Session) Play() error {
	s.mu.Lock()
	if s.playing || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.playing = true
	s.position = s.spec.Window.Start
	discover := s.discover
	s.mu.Unlock()

	if s.script.EarlyPlaying {
		s.msgs <- pipeline.Message{Type: pipeline.MessageStateChanged, State: pipeline.StatePlaying}
	}
	go s.runDiscovery(discover)
	return nil
}

func (s *Session) runDiscovery(discover pipeline.DiscoverFunc) {
	defer close(s.discovered)
	if discover != nil {
		if s.script.ConcurrentDiscovery {
			var wg sync.WaitGroup
			for i, desc := range s.script.Streams {
				wg.Add(1)
				go func() {
					defer wg.Done()
					discover(NewStreamPad(i), desc)
				}()
			}
			wg.Wait()
		} else {
			for i, desc := range s.script.Streams {
				discover(NewStreamPad(i), desc)
			}
		}
	}
	if !s.script.EarlyPlaying {
		s.msgs <- pipeline.Message{Type: pipeline.MessageStateChanged, State: pipeline.StatePlaying}
	}
}

func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.playing = false
	return nil
}

// Pop returns queued messages first. Once discovery has finished and the
// queue is empty, each call advances the scripted clock by one Step and
// returns without waiting, unless the script stalls.
func (s *Session) Pop(timeout time.Duration) (pipeline.Message, bool) {
	select {
	case m := <-s.msgs:
		return m, true
	default:
	}

	select {
	case <-s.discovered:
	case m := <-s.msgs:
		return m, true
	case <-time.After(timeout):
		return pipeline.Message{}, false
	}

	select {
	case m := <-s.msgs:
		return m, true
	default:
	}

	if s.script.Stall {
		time.Sleep(timeout)
		return pipeline.Message{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.closed || s.done {
		return pipeline.Message{}, false
	}
	s.ticks++
	if s.script.ErrorAfterTicks > 0 && s.ticks >= s.script.ErrorAfterTicks {
		s.done = true
		busErr := s.script.Error
		return pipeline.Message{Type: pipeline.MessageError, Err: &busErr}, true
	}
	s.position += s.script.Step
	if end := s.endLocked(); s.position >= end {
		s.position = end
		s.done = true
		s.writeOutputLocked()
		for i := 1; i < s.script.EOSCount; i++ {
			s.msgs <- pipeline.Message{Type: pipeline.MessageEOS}
		}
		return pipeline.Message{Type: pipeline.MessageEOS}, true
	}
	return pipeline.Message{}, false
}

func (s *Session) endLocked() time.Duration {
	if stop := s.spec.Window.Stop; stop > 0 && stop < s.script.Duration {
		return stop
	}
	return s.script.Duration
}

func (s *Session) writeOutputLocked() {
	if s.script.OutputBytes <= 0 || strings.TrimSpace(s.spec.Output) == "" {
		return
	}
	_ = os.WriteFile(s.spec.Output, make([]byte, s.script.OutputBytes), 0o644)
}

func (s *Session) Position() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, true
}

func (s *Session) Duration() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.script.DurationUnknown || s.ticks < s.script.DurationAfterTicks {
		return 0, false
	}
	return s.script.Duration, true
}

// Inspection helpers for tests.

// Attached returns the names of elements currently in the graph, sorted.
func (s *Session) Attached() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.added))
	for e := range s.added {
		out = append(out, e.name)
	}
	sort.Strings(out)
	return out
}

// Removed returns the names of elements rolled back, in order.
func (s *Session) Removed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.removed...)
}

// Released returns the names of muxer pads released, in order.
func (s *Session) Released() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.released...)
}

// Links returns every successful link as "src->sink".
func (s *Session) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.links...)
}

// Stopped reports whether Stop was called.
func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Spec returns the spec the session was opened with.
func (s *Session) Spec() pipeline.Spec { return s.spec }
