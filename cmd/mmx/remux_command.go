package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mmx/internal/job"
	"mmx/internal/logging"
	"mmx/internal/pipeline"
)

type remuxFlags struct {
	manifest     string
	fps          float64
	cfr          bool
	hardware     string
	progressJSON bool
	backend      string
	start        string
	stop         string
	dryRun       bool
}

func newRemuxCommand(ctx *commandContext) *cobra.Command {
	var flags remuxFlags

	cmd := &cobra.Command{
		Use:   "remux <input> <output>",
		Short: "Copy every routable stream of input into the container implied by output",
		Long: `Remux discovers the streams of the input file, routes each one through a
parser into the muxer selected from the output extension (.mp4/.m4v/.mov use
mp4mux, .mkv uses matroskamux, .webm uses webmmux) and plays the pipeline to
the end. Streams that cannot be routed are skipped and listed in the summary.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemux(cmd, ctx, flags, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&flags.manifest, "manifest", "", "JSON manifest to stamp with completed_at and output_size")
	cmd.Flags().Float64Var(&flags.fps, "fps", 0, "Frame rate hint (advisory)")
	cmd.Flags().BoolVar(&flags.cfr, "cfr", false, "Constant frame rate hint (advisory)")
	cmd.Flags().StringVar(&flags.hardware, "hardware", "", "Hardware acceleration hint (advisory)")
	cmd.Flags().BoolVar(&flags.progressJSON, "progress-json", false, "Emit JSON-lines progress events on stdout")
	cmd.Flags().StringVar(&flags.backend, "backend", "", "Backend override (gst or mock)")
	cmd.Flags().StringVar(&flags.start, "ss", "", "Start of the window to keep (e.g. 90s, 1:30, 00:01:30.5)")
	cmd.Flags().StringVar(&flags.stop, "to", "", "End of the window to keep")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Run preflight and print the planned pipeline without playing it")
	return cmd
}

func runRemux(cmd *cobra.Command, ctx *commandContext, flags remuxFlags, input, output string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.logger(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	window, err := parseWindow(flags.start, flags.stop)
	if err != nil {
		return err
	}

	hardware := strings.ToLower(strings.TrimSpace(flags.hardware))
	if hardware == "" {
		hardware = cfg.Backend.Hardware
	}

	backend, err := ctx.backend(flags.backend, logger)
	if err != nil {
		return err
	}

	store, err := ctx.openHistory()
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.Impact("job will not be recorded"),
			logging.Hint("check state_dir permissions or disable [history]"),
		)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	var progress io.Writer
	if flags.progressJSON {
		progress = cmd.OutOrStdout()
	}

	runner := job.NewRunner(cfg, backend, store, logger)
	summary, runErr := runner.Run(cmd.Context(), job.Options{
		Input:    input,
		Output:   output,
		Manifest: flags.manifest,
		Hints: pipeline.Hints{
			FrameRate: flags.fps,
			CFR:       flags.cfr,
			Hardware:  hardware,
		},
		Window:   window,
		Progress: progress,
		DryRun:   flags.dryRun,
	})

	printSummary(cmd.ErrOrStderr(), summary)
	return runErr
}

func parseWindow(start, stop string) (pipeline.Window, error) {
	var window pipeline.Window
	var err error
	if window.Start, err = parseTimestamp(start); err != nil {
		return window, fmt.Errorf("--ss: %w", err)
	}
	if window.Stop, err = parseTimestamp(stop); err != nil {
		return window, fmt.Errorf("--to: %w", err)
	}
	return window, nil
}

// parseTimestamp accepts Go durations ("1m30s"), plain seconds ("90.5") and
// clock notation ("1:30", "00:01:30.250"). Empty input is zero.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if strings.Contains(value, ":") {
		return parseClock(value)
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative timestamp %q", value)
		}
		if !validSeconds(seconds) {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timestamp %q", value)
	}
	return d, nil
}

func parseClock(value string) (time.Duration, error) {
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || !validSeconds(seconds) || seconds >= 60 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(seconds * float64(time.Second))
	units := []time.Duration{time.Minute, time.Hour}
	for i, part := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > maxClockHours {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		unit := units[len(parts)-2-i]
		if unit == time.Minute && len(parts) == 3 && n >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

// Bounds that keep every accepted timestamp representable as a time.Duration.
const (
	maxTimestampSeconds = float64(math.MaxInt64 / int64(time.Second))
	maxClockHours       = int(math.MaxInt64/int64(time.Hour)) - 1
)

func validSeconds(seconds float64) bool {
	return seconds >= 0 && seconds <= maxTimestampSeconds && !math.IsInf(seconds, 0) && !math.IsNaN(seconds)
}

func printSummary(out io.Writer, summary *job.Summary) {
	if summary == nil {
		return
	}
	if summary.Plan != "" {
		fmt.Fprintf(out, "Plan (%s): %s\n", summary.Muxer.Element(), summary.Plan)
		for _, r := range summary.Preflight {
			mark := "ok"
			if !r.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "  [%s] %s: %s\n", mark, r.Name, r.Detail)
		}
		return
	}
	if len(summary.Tracks) == 0 {
		return
	}

	rows := make([][]string, 0, len(summary.Tracks))
	for _, t := range summary.Tracks {
		reason := "-"
		if t.State == pipeline.TrackFailed {
			reason = titleLabel(t.Reason.String())
		}
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			t.Media,
			dash(string(t.Parser)),
			dash(t.MuxerPad),
			titleLabel(t.State.String()),
			reason,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Track", "Media", "Parser", "Muxer Pad", "State", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
		shouldColorize(out),
	))
	fmt.Fprintf(out, "%s: %d linked, %d skipped -> %s\n",
		titleLabel(summary.StatusLabel()), len(summary.Linked()), len(summary.Failed()), summary.Output)
}

func dash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
