package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"mmx/internal/config"
	"mmx/internal/deps"
	"mmx/internal/fileutil"
	"mmx/internal/history"
	"mmx/internal/logging"
	"mmx/internal/manifest"
	"mmx/internal/media/ffprobe"
	"mmx/internal/monitor"
	"mmx/internal/pipeline"
	"mmx/internal/preflight"
	"mmx/internal/routing"
	"mmx/internal/services"
)

const stageRemux = "remux"

// Options are the inputs of one remux job.
type Options struct {
	Input    string
	Output   string
	Manifest string
	Hints    pipeline.Hints
	Window   pipeline.Window
	// Progress receives the JSON-lines progress stream. nil disables it.
	Progress io.Writer
	// DryRun runs preflight and renders the planned chain without playing it.
	DryRun bool
}

// Runner executes remux jobs against one backend.
type Runner struct {
	cfg     *config.Config
	backend pipeline.Backend
	history *history.Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner builds a runner. store may be nil to skip the ledger.
func NewRunner(cfg *config.Config, backend pipeline.Backend, store *history.Store, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		backend: backend,
		history: store,
		logger:  logging.NewComponentLogger(logger, "job"),
		now:     time.Now,
	}
}

// Run executes one job to completion. The returned Summary is never nil;
// err is a *Error whenever the job did not complete.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	jobID := uuid.NewString()
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithStage(ctx, stageRemux)
	logger := logging.WithContext(ctx, r.logger)

	summary := &Summary{
		JobID:     jobID,
		Input:     strings.TrimSpace(opts.Input),
		Output:    strings.TrimSpace(opts.Output),
		Manifest:  strings.TrimSpace(opts.Manifest),
		Backend:   r.backend.Name(),
		Hints:     opts.Hints,
		Window:    opts.Window,
		Status:    monitor.StatusFailed,
		StartedAt: r.now(),
	}
	summary.Muxer = routing.SelectMuxerForPath(summary.Output)

	if err := validateOptions(summary); err != nil {
		return r.finish(ctx, logger, summary, err)
	}

	logger.Info("remux job starting",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("input", summary.Input),
		logging.String("output", summary.Output),
		logging.String("muxer", summary.Muxer.Element()),
		logging.String("backend", summary.Backend),
	)

	summary.Preflight = preflight.RunAll(ctx, preflight.Request{
		Input:   summary.Input,
		Output:  summary.Output,
		Backend: r.backend,
		Muxer:   summary.Muxer,
	})
	if err := preflight.FirstFailure(summary.Preflight); err != nil {
		return r.finish(ctx, logger, summary, err)
	}

	spec := pipeline.Spec{
		Input:  summary.Input,
		Output: summary.Output,
		Muxer:  summary.Muxer,
		Hints:  opts.Hints,
		Window: opts.Window,
	}

	if opts.DryRun {
		return r.dryRun(ctx, logger, summary, spec)
	}

	lock := flock.New(summary.Output + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return r.finish(ctx, logger, summary,
			services.Wrap(services.ErrOutputLocked, stageRemux, "lock output", summary.Output, err))
	}
	if !locked {
		return r.finish(ctx, logger, summary,
			services.Wrap(services.ErrOutputLocked, stageRemux, "lock output", "another job is writing "+summary.Output, nil))
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	session, err := r.backend.Open(ctx, spec)
	if err != nil {
		if !errors.Is(err, services.ErrBackendInit) {
			err = services.Wrap(services.ErrBackendInit, stageRemux, "open session", "", err)
		}
		return r.finish(ctx, logger, summary, err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Debug("session close failed", logging.Error(closeErr))
		}
	}()

	sink := monitor.NewSink(opts.Progress)
	mon := monitor.New(monitor.Options{
		WaitSlice:        r.cfg.WaitSlice(),
		ProgressInterval: r.cfg.ProgressInterval(),
		Window:           opts.Window,
		DurationSource:   r.durationSource(summary.Input),
		Checkpoint:       r.checkpoint(summary),
		Sink:             sink,
		Logger:           r.logger,
	})

	assembler := pipeline.NewAssembler(session.Builder(), session.Muxer(), pipeline.AssemblerOptions{
		Logger: r.logger,
		OnLinked: func(pipeline.TrackReport) {
			mon.TrackLinked()
		},
	})
	session.OnPadAdded(assembler.Handle().DiscoverFunc(logger))

	if err := sink.Start(jobID, summary.Muxer.Element(), summary.Input, summary.Output); err != nil {
		logger.Debug("start event write failed", logging.Error(err))
	}

	outcome, runErr := mon.Run(ctx, session.Execution())
	assembler.Detach()

	summary.Status = outcome.Status
	summary.State = outcome.State
	summary.Final = outcome.Final
	summary.Tracks = assembler.Tracks()
	if summary.OutputSize == nil {
		if size, ok := fileutil.FileSize(summary.Output); ok {
			summary.OutputSize = &size
		}
	}
	return r.finish(ctx, logger, summary, runErr)
}

func (r *Runner) dryRun(ctx context.Context, logger *slog.Logger, summary *Summary, spec pipeline.Spec) (*Summary, error) {
	session, err := r.backend.Open(ctx, spec)
	if err != nil {
		if !errors.Is(err, services.ErrBackendInit) {
			err = services.Wrap(services.ErrBackendInit, stageRemux, "open session", "", err)
		}
		return r.finish(ctx, logger, summary, err)
	}
	summary.Plan = session.Describe()
	if err := session.Close(); err != nil {
		logger.Debug("session close failed", logging.Error(err))
	}
	summary.Status = monitor.StatusCompleted
	summary.FinishedAt = r.now()
	logger.Info("dry run planned",
		logging.String(logging.FieldEventType, "job_planned"),
		logging.String("plan", summary.Plan),
	)
	return summary, nil
}

func (r *Runner) durationSource(input string) monitor.DurationSource {
	if !r.cfg.Monitor.FFprobeFallback {
		return nil
	}
	return ffprobe.DurationProbe{
		Binary: deps.ResolveFFprobePath(r.cfg.FFprobeBinary()),
		Path:   input,
	}
}

func (r *Runner) checkpoint(summary *Summary) monitor.CheckpointFunc {
	return func(completed bool) error {
		if summary.Manifest == "" {
			return nil
		}
		result, err := manifest.Checkpoint(summary.Manifest, summary.Output, manifest.Options{
			Completed: completed,
			Now:       r.now,
		})
		if err != nil {
			return err
		}
		summary.OutputSize = result.OutputSize
		return nil
	}
}

// finish records the job in the ledger and logs its outcome.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, summary *Summary, err error) (*Summary, error) {
	summary.FinishedAt = r.now()
	if err != nil {
		summary.Err = newError(err, preflight.Summary(summary.Preflight))
	}
	r.record(ctx, logger, summary)

	failed := summary.Failed()
	for _, t := range failed {
		logger.Info("track skipped",
			logging.TrackID(t.ID),
			logging.String("media", t.Media),
			logging.String("reason", t.Reason.String()),
		)
	}

	if summary.Err == nil {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "job_finished"),
			logging.Int("linked_tracks", len(summary.Linked())),
			logging.Int("failed_tracks", len(failed)),
			logging.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		}
		if summary.OutputSize != nil {
			attrs = append(attrs, logging.Int64("output_size", *summary.OutputSize))
		}
		logger.Info("remux job finished", logging.Args(attrs...)...)
		return summary, nil
	}

	attrs := []logging.Attr{
		logging.String("error_kind", string(summary.Err.Kind)),
		logging.Error(summary.Err.Err),
	}
	if summary.Err.Kind == KindConfiguration || summary.Err.Kind == KindBackendInit {
		attrs = append(attrs, logging.Hint("run mmx remux --dry-run to see preflight results"))
	}
	logging.ErrorWithContext(logger, "remux job failed", "job_failed", attrs...)
	return summary, summary.Err
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, summary *Summary) {
	if r.history == nil || summary.Plan != "" {
		return
	}
	job := history.Job{
		ID:           summary.JobID,
		InputPath:    summary.Input,
		OutputPath:   summary.Output,
		ManifestPath: summary.Manifest,
		Muxer:        summary.Muxer.Element(),
		Backend:      summary.Backend,
		Status:       summary.StatusLabel(),
		OutputSize:   summary.OutputSize,
		WindowStart:  summary.Window.Start,
		WindowStop:   summary.Window.Stop,
		FrameRate:    summary.Hints.FrameRate,
		CFR:          summary.Hints.CFR,
		Hardware:     summary.Hints.Hardware,
		LinkedTracks: len(summary.Linked()),
		FailedTracks: len(summary.Failed()),
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
	}
	job.MediaDuration = summary.Final.Total
	if summary.Err != nil {
		job.ErrorKind = string(summary.Err.Kind)
		job.ErrorMessage = summary.Err.Error()
	}
	for _, t := range summary.Tracks {
		job.Tracks = append(job.Tracks, history.Track{
			TrackID:      t.ID,
			Media:        t.Media,
			Parser:       string(t.Parser),
			PadTemplate:  string(t.Template),
			MuxerPad:     t.MuxerPad,
			State:        t.State.String(),
			Reason:       t.Reason.String(),
			ErrorMessage: t.Error,
		})
	}
	if err := r.history.Record(context.WithoutCancel(ctx), job); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_write_failed",
			logging.Error(err),
			logging.Impact("job missing from mmx history"),
			logging.Hint("check state_dir permissions"),
		)
	}
}

func validateOptions(summary *Summary) error {
	switch {
	case summary.Input == "":
		return services.Wrap(services.ErrConfiguration, stageRemux, "validate", "input path is required", nil)
	case summary.Output == "":
		return services.Wrap(services.ErrConfiguration, stageRemux, "validate", "output path is required", nil)
	case summary.Hints.FrameRate < 0:
		return services.Wrap(services.ErrConfiguration, stageRemux, "validate",
			fmt.Sprintf("frame rate must be positive, got %g", summary.Hints.FrameRate), nil)
	}
	if err := summary.Window.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, stageRemux, "validate", "", err)
	}
	return nil
}
