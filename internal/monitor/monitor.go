package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mmx/internal/logging"
	"mmx/internal/pipeline"
	"mmx/internal/services"
)

const (
	DefaultWaitSlice        = time.Second
	DefaultProgressInterval = 200 * time.Millisecond
	stageMonitor            = "monitor"
)

// DurationSource supplies the input duration when the backend cannot.
type DurationSource interface {
	Duration(ctx context.Context) (time.Duration, error)
}

// CheckpointFunc persists the job record. completed is false on failure and
// cancellation. Errors are logged and never change the outcome.
type CheckpointFunc func(completed bool) error

// Options configures a Monitor.
type Options struct {
	WaitSlice        time.Duration
	ProgressInterval time.Duration
	Window           pipeline.Window
	DurationSource   DurationSource
	Checkpoint       CheckpointFunc
	Sink             *Sink
	Logger           *slog.Logger
}

// Status is how a run ended.
type Status int

const (
	StatusCompleted Status = iota
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Outcome summarizes a finished run.
type Outcome struct {
	Status  Status
	State   RunState
	Final   Snapshot
	Elapsed time.Duration
	Err     error
}

// Monitor drives an Execution to completion and reports progress.
type Monitor struct {
	opts    Options
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	mu             sync.Mutex
	state          RunState
	pendingPlaying bool

	total         *time.Duration
	fallbackTried bool
	lastPosition  time.Duration
	lastPercent   float64
	lastEmit      time.Time
	started       time.Time
}

// New returns a monitor in the Idle state.
func New(opts Options) *Monitor {
	if opts.WaitSlice <= 0 {
		opts.WaitSlice = DefaultWaitSlice
	}
	if opts.ProgressInterval < 0 {
		opts.ProgressInterval = 0
	}
	return &Monitor{
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "monitor"),
		sampler: logging.NewProgressSampler(5),
		state:   StateIdle,
	}
}

// State returns the current run state.
func (m *Monitor) State() RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TrackLinked records that a track reached the muxer. The first call moves
// Idle to Assembling, and on to Playing if the backend already reported
// running.
func (m *Monitor) TrackLinked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return
	}
	m.transitionLocked(StateAssembling)
	if m.pendingPlaying {
		m.pendingPlaying = false
		m.transitionLocked(StatePlaying)
	}
}

func (m *Monitor) transition(to RunState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to)
}

func (m *Monitor) transitionLocked(to RunState) bool {
	if !canTransition(m.state, to) {
		return false
	}
	m.logger.Debug("run state changed",
		logging.String("from", m.state.String()),
		logging.String("to", to.String()),
	)
	m.state = to
	return true
}

func (m *Monitor) backendRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case StateIdle:
		m.pendingPlaying = true
	case StateAssembling:
		m.transitionLocked(StatePlaying)
	}
}

// Run starts exec and blocks until end-of-stream, a runtime error, or
// cancellation of ctx. Each bus wait is bounded by the wait slice, which
// also bounds cancellation latency.
func (m *Monitor) Run(ctx context.Context, exec pipeline.Execution) (Outcome, error) {
	m.started = time.Now()
	logger := logging.WithContext(ctx, m.logger)

	if err := exec.Play(); err != nil {
		return m.fail(exec, logger, &pipeline.BusError{Message: "failed to start pipeline", Debug: err.Error()})
	}

	for {
		if ctx.Err() != nil {
			return m.cancel(ctx, exec, logger)
		}
		msg, ok := exec.Pop(m.opts.WaitSlice)
		if ctx.Err() != nil {
			return m.cancel(ctx, exec, logger)
		}
		if ok {
			switch msg.Type {
			case pipeline.MessageStateChanged:
				if msg.State == pipeline.StatePlaying {
					m.backendRunning()
				}
			case pipeline.MessageError:
				busErr := msg.Err
				if busErr == nil {
					busErr = &pipeline.BusError{Message: "unknown pipeline error"}
				}
				return m.fail(exec, logger, busErr)
			case pipeline.MessageEOS:
				if outcome, done, err := m.endOfStream(ctx, exec, logger); done {
					return outcome, err
				}
			}
		}
		m.maybeEmit(ctx, exec, logger, time.Now())
	}
}

// endOfStream handles one end-of-stream signal. done is false when the
// signal only completed a pending Assembling to Playing step.
func (m *Monitor) endOfStream(ctx context.Context, exec pipeline.Execution, logger *slog.Logger) (Outcome, bool, error) {
	switch m.State() {
	case StateIdle:
		outcome, err := m.failWith(exec, logger, services.ErrNoLinkedTracks,
			&pipeline.BusError{Message: "end of stream before any track was linked"})
		return outcome, true, err
	case StateAssembling:
		m.transition(StatePlaying)
	}
	if !m.transition(StateDraining) {
		return Outcome{}, false, nil
	}

	final := m.finalSnapshot(ctx, exec)
	if err := m.opts.Sink.Progress(final); err != nil {
		logger.Debug("progress write failed", logging.Error(err))
	}
	m.checkpoint(logger, true)
	m.transition(StateCompleted)
	if err := m.opts.Sink.End(final); err != nil {
		logger.Debug("end write failed", logging.Error(err))
	}
	_ = exec.Stop()

	elapsed := time.Since(m.started)
	logger.Info("remux completed",
		logging.Duration("elapsed", elapsed),
		logging.Duration("media_duration", final.Position),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	return Outcome{Status: StatusCompleted, State: StateCompleted, Final: final, Elapsed: elapsed}, true, nil
}

func (m *Monitor) fail(exec pipeline.Execution, logger *slog.Logger, busErr *pipeline.BusError) (Outcome, error) {
	return m.failWith(exec, logger, services.ErrPipelineRuntime, busErr)
}

func (m *Monitor) failWith(exec pipeline.Execution, logger *slog.Logger, marker error, busErr *pipeline.BusError) (Outcome, error) {
	m.transition(StateFailed)
	_ = exec.Stop()

	attrs := []logging.Attr{
		logging.String("error_message", busErr.Message),
		logging.Impact("output file is incomplete"),
	}
	if busErr.Debug != "" {
		attrs = append(attrs, logging.String("debug", busErr.Debug))
	}
	if busErr.Category != "" {
		attrs = append(attrs, logging.String("category", busErr.Category))
	}
	logging.ErrorWithContext(logger, "remux failed", "job_failed", attrs...)

	m.checkpoint(logger, false)
	last := m.lastSnapshot()
	if err := m.opts.Sink.Fail(busErr.Error(), busErr.Debug, last.Position); err != nil {
		logger.Debug("error write failed", logging.Error(err))
	}
	err := services.Wrap(marker, stageMonitor, "run", busErr.Message, busErr)
	return Outcome{Status: StatusFailed, State: StateFailed, Final: last, Elapsed: time.Since(m.started), Err: err}, err
}

func (m *Monitor) cancel(ctx context.Context, exec pipeline.Execution, logger *slog.Logger) (Outcome, error) {
	m.transition(StateFailed)
	if err := exec.Stop(); err != nil {
		logger.Debug("stop after cancel failed", logging.Error(err))
	}
	logging.WarnWithContext(logger, "remux cancelled", "job_cancelled",
		logging.Impact("output file is incomplete"),
		logging.Hint("rerun the job to produce a complete output"),
	)
	m.checkpoint(logger, false)
	last := m.lastSnapshot()
	if err := m.opts.Sink.Cancel(last.Position); err != nil {
		logger.Debug("error write failed", logging.Error(err))
	}
	err := fmt.Errorf("%w: %w", services.ErrCancelled, context.Cause(ctx))
	return Outcome{Status: StatusCancelled, State: StateFailed, Final: last, Elapsed: time.Since(m.started), Err: err}, err
}

func (m *Monitor) checkpoint(logger *slog.Logger, completed bool) {
	if m.opts.Checkpoint == nil {
		return
	}
	if err := m.opts.Checkpoint(completed); err != nil {
		logging.WarnWithContext(logger, "manifest checkpoint failed", "manifest_write_failed",
			logging.Error(err),
			logging.Impact("manifest not updated; output file is unaffected"),
			logging.Hint("check manifest path permissions"),
		)
	}
}

func (m *Monitor) maybeEmit(ctx context.Context, exec pipeline.Execution, logger *slog.Logger, now time.Time) {
	if m.State() != StatePlaying {
		return
	}
	if !m.lastEmit.IsZero() && now.Sub(m.lastEmit) < m.opts.ProgressInterval {
		return
	}
	m.lastEmit = now
	snap := m.sample(ctx, exec)
	if err := m.opts.Sink.Progress(snap); err != nil && !errors.Is(err, ErrSinkClosed) {
		logger.Debug("progress write failed", logging.Error(err))
	}
	m.logProgress(logger, snap, now)
}

func (m *Monitor) logProgress(logger *slog.Logger, snap Snapshot, now time.Time) {
	pct := snap.PercentOr(-1)
	if !m.sampler.ShouldLog(pct, StatePlaying.String()) {
		return
	}
	attrs := []logging.Attr{logging.Duration("position", snap.Position)}
	if snap.Percent != nil {
		attrs = append(attrs, logging.Float64("percent", roundTenth(*snap.Percent)))
		if eta, ok := logging.EstimateRemaining(now.Sub(m.started), *snap.Percent); ok {
			attrs = append(attrs, logging.Duration("eta", eta))
		}
	}
	logger.Info("remux progress", logging.Args(attrs...)...)
}

// sample queries the backend and applies monotonic clamping.
func (m *Monitor) sample(ctx context.Context, exec pipeline.Execution) Snapshot {
	start := m.opts.Window.Start
	if pos, ok := exec.Position(); ok {
		rel := pos - start
		if rel > m.lastPosition {
			m.lastPosition = rel
		}
	}
	span := m.span(ctx, exec)
	snap := Snapshot{Position: m.lastPosition}
	if span != nil && *span > 0 {
		if m.lastPosition > *span {
			m.lastPosition = *span
			snap.Position = *span
		}
		pct := clampPercent(float64(m.lastPosition) / float64(*span) * 100)
		if pct < m.lastPercent {
			pct = m.lastPercent
		}
		m.lastPercent = pct
		snap.Total = span
		snap.Percent = &pct
	}
	return snap
}

// span is the length of the job window. It is known without the input
// duration when the window has an explicit stop.
func (m *Monitor) span(ctx context.Context, exec pipeline.Execution) *time.Duration {
	total := m.inputDuration(ctx, exec)
	w := m.opts.Window
	switch {
	case total != nil:
		s := w.Span(*total)
		return &s
	case w.Stop > 0:
		s := w.Stop - w.Start
		return &s
	default:
		return nil
	}
}

func (m *Monitor) inputDuration(ctx context.Context, exec pipeline.Execution) *time.Duration {
	if m.total != nil {
		return m.total
	}
	if d, ok := exec.Duration(); ok && d > 0 {
		m.total = &d
		return m.total
	}
	if m.opts.DurationSource != nil && !m.fallbackTried {
		m.fallbackTried = true
		d, err := m.opts.DurationSource.Duration(ctx)
		if err != nil {
			m.logger.Debug("duration fallback failed", logging.Error(err))
			return nil
		}
		if d > 0 {
			m.logger.Debug("duration from fallback probe", logging.Duration("duration", d))
			m.total = &d
		}
	}
	return m.total
}

func (m *Monitor) finalSnapshot(ctx context.Context, exec pipeline.Execution) Snapshot {
	m.sample(ctx, exec)
	span := m.span(ctx, exec)
	hundred := 100.0
	m.lastPercent = hundred
	snap := Snapshot{Position: m.lastPosition, Percent: &hundred}
	if span != nil && *span > 0 {
		m.lastPosition = *span
		snap.Position = *span
		snap.Total = span
	}
	return snap
}

func (m *Monitor) lastSnapshot() Snapshot {
	snap := Snapshot{Position: m.lastPosition}
	if m.total != nil {
		s := m.opts.Window.Span(*m.total)
		snap.Total = &s
		pct := m.lastPercent
		snap.Percent = &pct
	}
	return snap
}

func roundTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
