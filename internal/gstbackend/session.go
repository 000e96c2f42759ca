package gstbackend

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"mmx/internal/logging"
	"mmx/internal/pipeline"
	"mmx/internal/routing"
)

// Element wraps a GStreamer element with the kind it was made from.
type Element struct {
	elem *gst.Element
	kind pipeline.ElementKind
}

func (e *Element) Name() string               { return e.elem.GetName() }
func (e *Element) Kind() pipeline.ElementKind { return e.kind }

// Pad wraps a GStreamer pad.
type Pad struct {
	pad *gst.Pad
}

func (p *Pad) Name() string { return p.pad.GetName() }

// Session is one job graph. It implements pipeline.Session, pipeline.Builder,
// and pipeline.Execution.
type Session struct {
	spec     pipeline.Spec
	logger   *slog.Logger
	pipeline *gst.Pipeline
	bus      *gst.Bus
	source   *Element
	demux    *Element
	muxer    *Element
	sink     *Element

	mu          sync.Mutex
	discover    pipeline.DiscoverFunc
	seekPending bool
	stopped     bool
	closed      bool
}

func newSession(spec pipeline.Spec, logger *slog.Logger) (*Session, error) {
	pl, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	s := &Session{spec: spec, logger: logger, pipeline: pl}

	demuxKind := DemuxerFor(spec.Input)
	kinds := []pipeline.ElementKind{
		pipeline.KindFileSource,
		demuxKind,
		pipeline.MuxerElement(spec.Muxer),
		pipeline.KindFileSink,
	}
	elems := make([]*gst.Element, len(kinds))
	for i, kind := range kinds {
		if elems[i], err = makeElement(kind); err != nil {
			return nil, err
		}
	}
	s.source = &Element{elem: elems[0], kind: kinds[0]}
	s.demux = &Element{elem: elems[1], kind: kinds[1]}
	s.muxer = &Element{elem: elems[2], kind: kinds[2]}
	s.sink = &Element{elem: elems[3], kind: kinds[3]}

	if err := s.source.elem.SetProperty("location", spec.Input); err != nil {
		return nil, fmt.Errorf("set filesrc location: %w", err)
	}
	if err := s.sink.elem.SetProperty("location", spec.Output); err != nil {
		return nil, fmt.Errorf("set filesink location: %w", err)
	}

	if err := pl.AddMany(elems...); err != nil {
		return nil, fmt.Errorf("add static elements: %w", err)
	}
	if err := s.source.elem.Link(s.demux.elem); err != nil {
		return nil, fmt.Errorf("link %s to %s: %w", kinds[0], demuxKind, err)
	}
	if err := s.muxer.elem.Link(s.sink.elem); err != nil {
		return nil, fmt.Errorf("link %s to %s: %w", kinds[2], kinds[3], err)
	}

	if _, err := s.demux.elem.Connect("pad-added", s.onPadAdded); err != nil {
		return nil, fmt.Errorf("connect pad-added: %w", err)
	}
	s.bus = pl.GetPipelineBus()

	logger.Debug("pipeline built",
		logging.String("demuxer", string(demuxKind)),
		logging.String("muxer", string(kinds[2])),
	)
	return s, nil
}

func (s *Session) onPadAdded(_ *gst.Element, pad *gst.Pad) {
	s.mu.Lock()
	discover := s.discover
	closed := s.closed
	s.mu.Unlock()
	if discover == nil || closed {
		return
	}
	desc := describePad(pad)
	s.logger.Debug("demuxer pad added",
		logging.String("pad", pad.GetName()),
		logging.String("caps", desc.String()),
	)
	discover(&Pad{pad: pad}, desc)
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
	return fmt.Sprintf("filesrc location=%q ! %s ! (queue [! parser]) per track ! %s ! filesink location=%q",
		s.spec.Input, s.demux.kind, s.muxer.kind, s.spec.Output)
}

// Close drives the pipeline to NULL and drops the discovery callback.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.discover = nil
	s.mu.Unlock()
	return s.pipeline.SetState(gst.StateNull)
}

// Builder

func (s *Session) Make(kind pipeline.ElementKind) (pipeline.Element, error) {
	elem, err := makeElement(kind)
	if err != nil {
		return nil, err
	}
	return &Element{elem: elem, kind: kind}, nil
}

// Add adds every element or none of them.
func (s *Session) Add(elems ...pipeline.Element) error {
	added := make([]*gst.Element, 0, len(elems))
	for _, e := range elems {
		ge := unwrap(e)
		if err := s.pipeline.Add(ge); err != nil {
			for _, prev := range added {
				_ = s.pipeline.Remove(prev)
			}
			return fmt.Errorf("add %s: %w", e.Kind(), err)
		}
		added = append(added, ge)
	}
	return nil
}

func (s *Session) Remove(elems ...pipeline.Element) error {
	var firstErr error
	for _, e := range elems {
		ge := unwrap(e)
		_ = ge.SetState(gst.StateNull)
		if err := s.pipeline.Remove(ge); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}
	return firstErr
}

// Sync brings freshly added elements up to the pipeline's current state.
func (s *Session) Sync(elems ...pipeline.Element) error {
	for _, e := range elems {
		if !unwrap(e).SyncStateWithParent() {
			return fmt.Errorf("sync state of %s", e.Name())
		}
	}
	return nil
}

func (s *Session) LinkPad(src pipeline.Pad, sink pipeline.Element) error {
	sinkPad := unwrap(sink).GetStaticPad("sink")
	if sinkPad == nil {
		return fmt.Errorf("%s has no sink pad", sink.Name())
	}
	return linkPads(unwrapPad(src), sinkPad)
}

func (s *Session) Link(src, sink pipeline.Element) error {
	return unwrap(src).Link(unwrap(sink))
}

func (s *Session) RequestPad(muxer pipeline.Element, template routing.PadTemplate) (pipeline.Pad, error) {
	pad := unwrap(muxer).GetRequestPad(string(template))
	if pad == nil {
		return nil, fmt.Errorf("%s refused pad for template %s", muxer.Name(), template)
	}
	return &Pad{pad: pad}, nil
}

func (s *Session) LinkToPad(src pipeline.Element, sink pipeline.Pad) error {
	srcPad := unwrap(src).GetStaticPad("src")
	if srcPad == nil {
		return fmt.Errorf("%s has no src pad", src.Name())
	}
	return linkPads(srcPad, unwrapPad(sink))
}

func (s *Session) ReleasePad(muxer pipeline.Element, pad pipeline.Pad) error {
	unwrap(muxer).ReleaseRequestPad(unwrapPad(pad))
	return nil
}

func linkPads(src, sink *gst.Pad) error {
	if ret := src.Link(sink); ret != gst.PadLinkOK {
		return fmt.Errorf("link %s to %s: %v", src.GetName(), sink.GetName(), ret)
	}
	return nil
}

func unwrap(e pipeline.Element) *gst.Element {
	switch v := e.(type) {
	case *Element:
		return v.elem
	default:
		panic(fmt.Sprintf("gstbackend: foreign element %T", e))
	}
}

func unwrapPad(p pipeline.Pad) *gst.Pad {
	switch v := p.(type) {
	case *Pad:
		return v.pad
	default:
		panic(fmt.Sprintf("gstbackend: foreign pad %T", p))
	}
}

// Execution

// Play starts the pipeline. With a trim window the pipeline first prerolls
// in PAUSED; Pop applies the seek on async-done and then switches to PLAYING.
func (s *Session) Play() error {
	s.mu.Lock()
	s.seekPending = !s.spec.Window.IsZero()
	pending := s.seekPending
	s.mu.Unlock()
	if pending {
		return s.pipeline.SetState(gst.StatePaused)
	}
	return s.pipeline.SetState(gst.StatePlaying)
}

func (s *Session) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()
	return s.pipeline.SetState(gst.StateNull)
}

// Pop translates bus messages, skipping those the monitor does not use.
func (s *Session) Pop(timeout time.Duration) (pipeline.Message, bool) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return pipeline.Message{}, false
		}
		msg := s.bus.TimedPop(remaining)
		if msg == nil {
			return pipeline.Message{}, false
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return pipeline.Message{Type: pipeline.MessageEOS}, true
		case gst.MessageError:
			gerr := msg.ParseError()
			busErr := &pipeline.BusError{Source: msg.Source()}
			if gerr != nil {
				busErr.Message = gerr.Error()
				busErr.Debug = gerr.DebugString()
			}
			busErr.Category = ClassifyError(busErr.Message, busErr.Debug).String()
			return pipeline.Message{Type: pipeline.MessageError, Err: busErr}, true
		case gst.MessageStateChanged:
			if msg.Source() != s.pipeline.GetName() {
				continue
			}
			_, next := msg.ParseStateChanged()
			return pipeline.Message{Type: pipeline.MessageStateChanged, State: mapState(next)}, true
		case gst.MessageAsyncDone:
			if err := s.applyWindow(); err != nil {
				return pipeline.Message{Type: pipeline.MessageError, Err: &pipeline.BusError{
					Message:  "failed to apply time range",
					Debug:    err.Error(),
					Category: ErrCategoryUnknown.String(),
				}}, true
			}
		}
	}
}

// applyWindow seeks the whole pipeline to the job window once, after preroll.
func (s *Session) applyWindow() error {
	s.mu.Lock()
	pending := s.seekPending
	s.seekPending = false
	s.mu.Unlock()
	if !pending {
		return nil
	}

	w := s.spec.Window
	stopType := gst.SeekTypeNone
	stop := int64(-1)
	if w.Stop > 0 {
		stopType = gst.SeekTypeSet
		stop = int64(w.Stop)
	}
	flags := gst.SeekFlagFlush | gst.SeekFlagAccurate
	if !s.pipeline.Seek(1.0, gst.FormatTime, flags, gst.SeekTypeSet, int64(w.Start), stopType, stop) {
		return fmt.Errorf("seek to %s-%s rejected", w.Start, w.Stop)
	}
	s.logger.Debug("time range applied",
		logging.Duration("start", w.Start),
		logging.Duration("stop", w.Stop),
	)
	return s.pipeline.SetState(gst.StatePlaying)
}

func (s *Session) Position() (time.Duration, bool) {
	ok, pos := s.pipeline.QueryPosition(gst.FormatTime)
	if !ok || pos < 0 {
		return 0, false
	}
	return time.Duration(pos), true
}

func (s *Session) Duration() (time.Duration, bool) {
	ok, dur := s.pipeline.QueryDuration(gst.FormatTime)
	if !ok || dur <= 0 {
		return 0, false
	}
	return time.Duration(dur), true
}

func mapState(state gst.State) pipeline.State {
	switch state {
	case gst.StatePlaying:
		return pipeline.StatePlaying
	case gst.StatePaused:
		return pipeline.StatePaused
	case gst.StateReady:
		return pipeline.StateReady
	default:
		return pipeline.StateNull
	}
}
