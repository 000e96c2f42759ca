package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mmx/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the job ledger",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent remux jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				views := make([]jobView, 0, len(jobs))
				for _, j := range jobs {
					views = append(views, newJobView(j))
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				rows = append(rows, []string{
					shortID(j.ID),
					j.StartedAt.Local().Format("2006-01-02 15:04:05"),
					titleLabel(j.Status),
					j.Muxer,
					fmt.Sprintf("%d/%d", j.LinkedTracks, j.LinkedTracks+j.FailedTracks),
					formatElapsed(j.Elapsed()),
					j.OutputPath,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Status", "Muxer", "Tracks", "Elapsed", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				shouldColorize(out),
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job and its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := requireHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			j, err := findJob(cmd, store, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, newJobView(*j))
			}
			renderJob(cmd.OutOrStdout(), j)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete ledger entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			store, err := requireHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Remove jobs that started before now minus this duration")
	return cmd
}

func requireHistory(ctx *commandContext) (*history.Store, error) {
	store, err := ctx.openHistory()
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if store == nil {
		return nil, errors.New("history is disabled; set [history] enabled = true")
	}
	return store, nil
}

// findJob accepts a full ID or the unique prefix shown by history list.
func findJob(cmd *cobra.Command, store *history.Store, id string) (*history.Job, error) {
	id = strings.TrimSpace(id)
	j, err := store.Get(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if j != nil {
		return j, nil
	}
	jobs, err := store.List(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *history.Job
	for i := range jobs {
		if !strings.HasPrefix(jobs[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("job id %q is ambiguous", id)
		}
		match = &jobs[i]
	}
	if match == nil {
		return nil, fmt.Errorf("job %q not found", id)
	}
	return store.Get(cmd.Context(), match.ID)
}

func renderJob(out io.Writer, j *history.Job) {
	fmt.Fprintf(out, "Job:      %s\n", j.ID)
	fmt.Fprintf(out, "Status:   %s\n", titleLabel(j.Status))
	if j.ErrorKind != "" {
		fmt.Fprintf(out, "Error:    %s (%s)\n", j.ErrorMessage, j.ErrorKind)
	}
	fmt.Fprintf(out, "Input:    %s\n", j.InputPath)
	fmt.Fprintf(out, "Output:   %s\n", j.OutputPath)
	if j.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest: %s\n", j.ManifestPath)
	}
	fmt.Fprintf(out, "Muxer:    %s (%s backend)\n", j.Muxer, j.Backend)
	fmt.Fprintf(out, "Started:  %s\n", j.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Elapsed:  %s\n", formatElapsed(j.Elapsed()))
	if j.MediaDuration != nil {
		fmt.Fprintf(out, "Duration: %s\n", j.MediaDuration.Round(time.Millisecond))
	}
	if j.OutputSize != nil {
		fmt.Fprintf(out, "Size:     %d bytes\n", *j.OutputSize)
	}
	if j.WindowStart > 0 || j.WindowStop > 0 {
		fmt.Fprintf(out, "Window:   %s - %s\n", j.WindowStart, formatStop(j.WindowStop))
	}
	if j.FrameRate > 0 || j.CFR || j.Hardware != "" {
		fmt.Fprintf(out, "Hints:    fps=%g cfr=%s hardware=%s\n", j.FrameRate, yesNo(j.CFR), dash(j.Hardware))
	}

	if len(j.Tracks) == 0 {
		return
	}
	rows := make([][]string, 0, len(j.Tracks))
	for _, t := range j.Tracks {
		rows = append(rows, []string{
			strconv.Itoa(t.TrackID),
			t.Media,
			dash(t.Parser),
			dash(t.MuxerPad),
			titleLabel(t.State),
			titleLabel(t.Reason),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Track", "Media", "Parser", "Muxer Pad", "State", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
		shouldColorize(out),
	))
}

type jobView struct {
	ID              string      `json:"id"`
	Status          string      `json:"status"`
	ErrorKind       string      `json:"error_kind,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	Input           string      `json:"input"`
	Output          string      `json:"output"`
	Manifest        string      `json:"manifest,omitempty"`
	Muxer           string      `json:"muxer"`
	Backend         string      `json:"backend"`
	OutputSize      *int64      `json:"output_size,omitempty"`
	MediaDurationNS *int64      `json:"media_duration_ns,omitempty"`
	LinkedTracks    int         `json:"linked_tracks"`
	FailedTracks    int         `json:"failed_tracks"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
	Tracks          []trackView `json:"tracks,omitempty"`
}

type trackView struct {
	ID       int    `json:"id"`
	Media    string `json:"media"`
	Parser   string `json:"parser,omitempty"`
	Template string `json:"pad_template,omitempty"`
	MuxerPad string `json:"muxer_pad,omitempty"`
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newJobView(j history.Job) jobView {
	view := jobView{
		ID:           j.ID,
		Status:       j.Status,
		ErrorKind:    j.ErrorKind,
		ErrorMessage: j.ErrorMessage,
		Input:        j.InputPath,
		Output:       j.OutputPath,
		Manifest:     j.ManifestPath,
		Muxer:        j.Muxer,
		Backend:      j.Backend,
		OutputSize:   j.OutputSize,
		LinkedTracks: j.LinkedTracks,
		FailedTracks: j.FailedTracks,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
	if j.MediaDuration != nil {
		ns := j.MediaDuration.Nanoseconds()
		view.MediaDurationNS = &ns
	}
	for _, t := range j.Tracks {
		view.Tracks = append(view.Tracks, trackView{
			ID:       t.TrackID,
			Media:    t.Media,
			Parser:   t.Parser,
			Template: t.PadTemplate,
			MuxerPad: t.MuxerPad,
			State:    t.State,
			Reason:   t.Reason,
			Error:    t.ErrorMessage,
		})
	}
	return view
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func formatStop(stop time.Duration) string {
	if stop <= 0 {
		return "end"
	}
	return stop.String()
}
