package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Job is one ledger row.
type Job struct {
	ID            string
	InputPath     string
	OutputPath    string
	ManifestPath  string
	Muxer         string
	Backend       string
	Status        string
	ErrorKind     string
	ErrorMessage  string
	OutputSize    *int64
	MediaDuration *time.Duration
	WindowStart   time.Duration
	WindowStop    time.Duration
	FrameRate     float64
	CFR           bool
	Hardware      string
	LinkedTracks  int
	FailedTracks  int
	StartedAt     time.Time
	FinishedAt    time.Time
	Tracks        []Track
}

// Track is the recorded outcome of one discovered stream.
type Track struct {
	TrackID      int
	Media        string
	Parser       string
	PadTemplate  string
	MuxerPad     string
	State        string
	Reason       string
	ErrorMessage string
}

// Elapsed returns wall time spent on the job.
func (j Job) Elapsed() time.Duration {
	if j.FinishedAt.Before(j.StartedAt) {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Record inserts a finished job and its tracks in one transaction.
func (s *Store) Record(ctx context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx, `INSERT INTO jobs (
			id, input_path, output_path, manifest_path, muxer, backend, status,
			error_kind, error_message, output_size, media_duration_ns,
			window_start_ns, window_stop_ns, frame_rate, cfr, hardware,
			linked_tracks, failed_tracks, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID,
			job.InputPath,
			job.OutputPath,
			nullableString(job.ManifestPath),
			job.Muxer,
			job.Backend,
			job.Status,
			nullableString(job.ErrorKind),
			nullableString(job.ErrorMessage),
			nullableInt64(job.OutputSize),
			nullableDuration(job.MediaDuration),
			int64(job.WindowStart),
			int64(job.WindowStop),
			nullableFloat(job.FrameRate),
			boolToInt(job.CFR),
			nullableString(job.Hardware),
			job.LinkedTracks,
			job.FailedTracks,
			formatTime(job.StartedAt),
			formatTime(job.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		for _, t := range job.Tracks {
			_, err := tx.ExecContext(ctx, `INSERT INTO job_tracks (
				job_id, track_id, media, parser, pad_template, muxer_pad, state, reason, error_message
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				job.ID,
				t.TrackID,
				t.Media,
				nullableString(t.Parser),
				nullableString(t.PadTemplate),
				nullableString(t.MuxerPad),
				t.State,
				nullableString(t.Reason),
				nullableString(t.ErrorMessage),
			)
			if err != nil {
				return fmt.Errorf("insert track %d: %w", t.TrackID, err)
			}
		}
		return tx.Commit()
	})
}

const jobColumns = `id, input_path, output_path, manifest_path, muxer, backend, status,
	error_kind, error_message, output_size, media_duration_ns,
	window_start_ns, window_stop_ns, frame_rate, cfr, hardware,
	linked_tracks, failed_tracks, started_at, finished_at`

// List returns the most recent jobs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Get returns one job with its tracks, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tracks, err := s.Tracks(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Tracks = tracks
	return job, nil
}

// Tracks returns the recorded tracks of a job in discovery order.
func (s *Store) Tracks(ctx context.Context, jobID string) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track_id, media, parser, pad_template, muxer_pad, state, reason, error_message
		FROM job_tracks WHERE job_id = ? ORDER BY track_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var (
			t                                          Track
			parser, template, muxPad, reason, errorMsg sql.NullString
		)
		if err := rows.Scan(&t.TrackID, &t.Media, &parser, &template, &muxPad, &t.State, &reason, &errorMsg); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.Parser = parser.String
		t.PadTemplate = template.String
		t.MuxerPad = muxPad.String
		t.Reason = reason.String
		t.ErrorMessage = errorMsg.String
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// Prune deletes jobs that started before cutoff and returns how many went.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stamp := formatTime(cutoff)
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM job_tracks WHERE job_id IN (SELECT id FROM jobs WHERE started_at < ?)", stamp); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE started_at < ?", stamp)
		if err != nil {
			return err
		}
		if affected, err = res.RowsAffected(); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return affected, nil
}
