package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"weak"

	"mmx/internal/logging"
	"mmx/internal/routing"
	"mmx/internal/services"
)

// ErrGraphClosed is returned for discovery events that arrive after the job
// graph has been detached.
var ErrGraphClosed = errors.New("pipeline graph closed")

// ErrTrackDecided is returned when a track is offered to the assembler twice.
var ErrTrackDecided = errors.New("track already decided")

const stageAssembling = "assembling"

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	Logger *slog.Logger
	// OnLinked runs after a track reaches the muxer, outside the assembler lock.
	OnLinked func(TrackReport)
}

// Assembler extends the live graph as tracks are discovered. All mutation is
// serialized by a per-job mutex because discovery runs on backend threads.
type Assembler struct {
	mu       sync.Mutex
	graph    *Graph
	closed   bool
	nextID   int
	logger   *slog.Logger
	onLinked func(TrackReport)
}

// NewAssembler binds an assembler to a session's builder and muxer.
func NewAssembler(builder Builder, muxer Element, opts AssemblerOptions) *Assembler {
	return &Assembler{
		graph:    newGraph(builder, muxer),
		logger:   logging.NewComponentLogger(opts.Logger, "assembler"),
		onLinked: opts.OnLinked,
	}
}

// Register records a newly exposed stream as a Discovered track.
func (a *Assembler) Register(pad Pad, desc routing.Descriptor) (*Track, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrGraphClosed
	}
	return a.registerLocked(pad, desc), nil
}

func (a *Assembler) registerLocked(pad Pad, desc routing.Descriptor) *Track {
	track := &Track{ID: a.nextID, Pad: pad, Descriptor: desc}
	a.nextID++
	a.graph.register(track)
	return track
}

// Discover registers a newly exposed stream, classifies it once, and wires it.
// Registration and wiring happen under one lock hold, so a concurrent Detach
// either rejects the stream or waits for its decision.
func (a *Assembler) Discover(pad Pad, desc routing.Descriptor) (TrackReport, error) {
	decision := routing.Classify(desc)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return TrackReport{}, ErrGraphClosed
	}
	track := a.registerLocked(pad, desc)
	linked, err := a.attachLocked(track, decision)
	report := track.report()
	a.mu.Unlock()

	if linked && a.onLinked != nil {
		a.onLinked(report)
	}
	return report, err
}

// OnTrackDiscovered wires a registered track according to decision. Failures
// specific to the track are recorded on it and never returned; the returned
// error is reserved for misuse (closed graph, foreign or already decided
// track).
func (a *Assembler) OnTrackDiscovered(track *Track, decision routing.Decision) error {
	if track == nil {
		return errors.New("nil track")
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrGraphClosed
	}
	if !a.owns(track) {
		a.mu.Unlock()
		return fmt.Errorf("track %d was not registered with this assembler", track.ID)
	}
	linked, err := a.attachLocked(track, decision)
	report := track.report()
	a.mu.Unlock()

	if linked && a.onLinked != nil {
		a.onLinked(report)
	}
	return err
}

func (a *Assembler) owns(track *Track) bool {
	for _, t := range a.graph.tracks {
		if t == track {
			return true
		}
	}
	return false
}

// attachLocked runs the linking algorithm. It reports whether the track was
// linked. Caller holds a.mu.
func (a *Assembler) attachLocked(track *Track, decision routing.Decision) (bool, error) {
	if track.decided {
		return false, ErrTrackDecided
	}
	track.decided = true
	track.Decision = decision

	logger := a.logger.With(
		logging.TrackID(track.ID),
		logging.String("media", track.Descriptor.Name()),
	)

	if !decision.Routable() {
		a.fail(track, ReasonUnroutable, services.Wrap(services.ErrUnroutable, stageAssembling, "classify",
			fmt.Sprintf("no muxer pad for %s", track.Descriptor), nil))
		logging.WarnWithContext(logger, "track skipped", "track_unroutable",
			logging.Impact("stream omitted from output"),
			logging.Hint("the output container has no route for this media type"),
		)
		return false, nil
	}

	b := a.graph.builder
	chain, err := a.buildChain(decision)
	if err != nil {
		a.fail(track, ReasonLinkFailed, services.Wrap(services.ErrLinkFailed, stageAssembling, "make elements", "", err))
		a.warnFailed(logger, track)
		return false, nil
	}
	if err := b.Add(chain...); err != nil {
		a.fail(track, ReasonLinkFailed, services.Wrap(services.ErrLinkFailed, stageAssembling, "add elements", "", err))
		a.warnFailed(logger, track)
		return false, nil
	}

	head, tail := chain[0], chain[len(chain)-1]
	if err := b.LinkPad(track.Pad, head); err != nil {
		a.rollback(logger, chain, nil)
		a.fail(track, ReasonLinkFailed, services.Wrap(services.ErrLinkFailed, stageAssembling, "link track to queue", "", err))
		a.warnFailed(logger, track)
		return false, nil
	}
	if len(chain) > 1 {
		if err := b.Link(chain[0], chain[1]); err != nil {
			a.rollback(logger, chain, nil)
			a.fail(track, ReasonLinkFailed, services.Wrap(services.ErrLinkFailed, stageAssembling, "link queue to parser", "", err))
			a.warnFailed(logger, track)
			return false, nil
		}
	}

	muxPad, err := b.RequestPad(a.graph.muxer, decision.PadTemplate)
	if err == nil && muxPad == nil {
		err = errors.New("muxer returned no pad")
	}
	if err == nil && !a.graph.claimPad(muxPad, track.ID) {
		logger.Warn("muxer returned a pad already linked to another track",
			logging.Alert("muxer_pad_reused"),
			logging.String("pad", muxPad.Name()),
		)
		err = fmt.Errorf("pad %s already linked to another track", muxPad.Name())
		muxPad = nil
	}
	if err != nil {
		a.rollback(logger, chain, nil)
		a.fail(track, ReasonMuxerPadRefused, services.Wrap(services.ErrMuxerPadRefused, stageAssembling, "request muxer pad",
			string(decision.PadTemplate), err))
		a.warnFailed(logger, track)
		return false, nil
	}

	if err := b.LinkToPad(tail, muxPad); err != nil {
		a.rollback(logger, chain, muxPad)
		a.fail(track, ReasonLinkFailed, services.Wrap(services.ErrLinkFailed, stageAssembling, "link to muxer", muxPad.Name(), err))
		a.warnFailed(logger, track)
		return false, nil
	}
	if err := b.Sync(chain...); err != nil {
		a.rollback(logger, chain, muxPad)
		a.fail(track, ReasonLinkFailed, services.Wrap(services.ErrLinkFailed, stageAssembling, "sync state", "", err))
		a.warnFailed(logger, track)
		return false, nil
	}

	a.graph.adopt(track.ID, chain)
	track.chain = chain
	track.MuxerPad = muxPad
	track.State = TrackLinked
	logger.Info("track linked",
		logging.String("parser", string(decision.Parser)),
		logging.String("muxer_pad", muxPad.Name()),
		logging.String(logging.FieldEventType, "track_linked"),
	)
	return true, nil
}

func (a *Assembler) buildChain(decision routing.Decision) ([]Element, error) {
	b := a.graph.builder
	queue, err := b.Make(KindQueue)
	if err != nil {
		return nil, err
	}
	chain := []Element{queue}
	if decision.HasParser() {
		parser, err := b.Make(ParserElement(decision.Parser))
		if err != nil {
			return nil, err
		}
		chain = append(chain, parser)
	}
	return chain, nil
}

// rollback releases a requested muxer pad and removes a track's partial chain
// so nothing of a failed track stays attached.
func (a *Assembler) rollback(logger *slog.Logger, chain []Element, muxPad Pad) {
	if muxPad != nil {
		delete(a.graph.muxPads, muxPad)
		if err := a.graph.builder.ReleasePad(a.graph.muxer, muxPad); err != nil {
			logger.Debug("release muxer pad failed", logging.Error(err))
		}
	}
	if err := a.graph.builder.Remove(chain...); err != nil {
		logger.Debug("remove partial chain failed", logging.Error(err))
	}
}

func (a *Assembler) fail(track *Track, reason FailureReason, err error) {
	track.State = TrackFailed
	track.Reason = reason
	track.Err = err
}

func (a *Assembler) warnFailed(logger *slog.Logger, track *Track) {
	logging.WarnWithContext(logger, "track not linked", "track_"+track.Reason.String(),
		logging.Error(track.Err),
		logging.Impact("stream omitted from output"),
		logging.Hint("other tracks continue; check element availability and muxer compatibility"),
	)
}

// Detach closes the assembler to further discovery. Elements are left to the
// session teardown.
func (a *Assembler) Detach() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

// Tracks returns copies of every track seen so far, in discovery order.
func (a *Assembler) Tracks() []TrackReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.graph.reports()
}

// LinkedCount returns the number of tracks attached to the muxer.
func (a *Assembler) LinkedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.graph.linkedCount()
}

// ElementCount returns how many track elements the graph owns.
func (a *Assembler) ElementCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.graph.elements)
}

// Handle returns a non-owning reference suitable for backend callbacks.
func (a *Assembler) Handle() Handle {
	return Handle{ref: weak.Make(a)}
}

// Handle is a non-owning reference to an Assembler. It does not keep the
// assembler alive, and every use re-validates that the graph is still open.
type Handle struct {
	ref weak.Pointer[Assembler]
}

// Alive reports whether the assembler still exists and accepts discovery.
func (h Handle) Alive() bool {
	a := h.ref.Value()
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

// Discover forwards to the assembler if it is still alive.
func (h Handle) Discover(pad Pad, desc routing.Descriptor) (TrackReport, error) {
	a := h.ref.Value()
	if a == nil {
		return TrackReport{}, ErrGraphClosed
	}
	return a.Discover(pad, desc)
}

// DiscoverFunc adapts the handle to a backend discovery callback. Late and
// failed events are logged and dropped.
func (h Handle) DiscoverFunc(logger *slog.Logger) DiscoverFunc {
	logger = logging.NewComponentLogger(logger, "discovery")
	return func(pad Pad, desc routing.Descriptor) {
		if _, err := h.Discover(pad, desc); err != nil {
			logger.Debug("discovery event dropped",
				logging.String("media", desc.Name()),
				logging.Error(err),
			)
		}
	}
}
