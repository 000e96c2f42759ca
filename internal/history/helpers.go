package history

import (
	"database/sql"
	"fmt"
	"time"
)

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job                                             Job
		manifestPath, errorKind, errorMessage, hardware sql.NullString
		outputSize, mediaDuration                       sql.NullInt64
		windowStart, windowStop                         int64
		frameRate                                       sql.NullFloat64
		cfr                                             int
		startedAt, finishedAt                           string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.InputPath,
		&job.OutputPath,
		&manifestPath,
		&job.Muxer,
		&job.Backend,
		&job.Status,
		&errorKind,
		&errorMessage,
		&outputSize,
		&mediaDuration,
		&windowStart,
		&windowStop,
		&frameRate,
		&cfr,
		&hardware,
		&job.LinkedTracks,
		&job.FailedTracks,
		&startedAt,
		&finishedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.ManifestPath = manifestPath.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String
	job.Hardware = hardware.String
	if outputSize.Valid {
		v := outputSize.Int64
		job.OutputSize = &v
	}
	if mediaDuration.Valid {
		v := time.Duration(mediaDuration.Int64)
		job.MediaDuration = &v
	}
	job.WindowStart = time.Duration(windowStart)
	job.WindowStop = time.Duration(windowStop)
	job.FrameRate = frameRate.Float64
	job.CFR = cfr != 0
	if t, err := parseTimeString(startedAt); err == nil {
		job.StartedAt = t
	}
	if t, err := parseTimeString(finishedAt); err == nil {
		job.FinishedAt = t
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableDuration(value *time.Duration) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

func nullableFloat(value float64) any {
	if value == 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeLayout keeps a fixed-width fraction so stored stamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
