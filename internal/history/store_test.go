package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"mmx/internal/history"
	"mmx/internal/testsupport"
)

func sampleJob(id string, started time.Time) history.Job {
	size := int64(4096)
	total := 10 * time.Second
	return history.Job{
		ID:            id,
		InputPath:     "/media/in.mp4",
		OutputPath:    "/media/out.mkv",
		ManifestPath:  "/media/out.json",
		Muxer:         "matroskamux",
		Backend:       "mock",
		Status:        "completed",
		OutputSize:    &size,
		MediaDuration: &total,
		WindowStart:   2 * time.Second,
		WindowStop:    8 * time.Second,
		FrameRate:     23.976,
		CFR:           true,
		Hardware:      "vaapi",
		LinkedTracks:  2,
		FailedTracks:  1,
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
		Tracks: []history.Track{
			{TrackID: 0, Media: "video/x-h264", Parser: "h264parse", PadTemplate: "video_%u", MuxerPad: "video_0", State: "linked"},
			{TrackID: 1, Media: "audio/mpeg", Parser: "aacparse", PadTemplate: "audio_%u", MuxerPad: "audio_0", State: "linked"},
			{TrackID: 2, Media: "application/x-custom", State: "failed", Reason: "unroutable", ErrorMessage: "no route"},
		},
	}
}

func TestRecordAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Record(ctx, sampleJob("job-1", started)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected job to exist")
	}
	if got.Muxer != "matroskamux" || got.Status != "completed" {
		t.Fatalf("unexpected job fields: %+v", got)
	}
	if got.OutputSize == nil || *got.OutputSize != 4096 {
		t.Fatalf("unexpected output size: %v", got.OutputSize)
	}
	if got.MediaDuration == nil || *got.MediaDuration != 10*time.Second {
		t.Fatalf("unexpected media duration: %v", got.MediaDuration)
	}
	if got.WindowStart != 2*time.Second || got.WindowStop != 8*time.Second {
		t.Fatalf("unexpected window: %s-%s", got.WindowStart, got.WindowStop)
	}
	if !got.CFR || got.Hardware != "vaapi" {
		t.Fatalf("hints not preserved: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("started_at = %s, want %s", got.StartedAt, started)
	}
	if got.Elapsed() != 3*time.Second {
		t.Fatalf("elapsed = %s", got.Elapsed())
	}
	if len(got.Tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(got.Tracks))
	}
	if got.Tracks[2].Reason != "unroutable" || got.Tracks[2].Parser != "" {
		t.Fatalf("unexpected failed track: %+v", got.Tracks[2])
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestRecordRequiresID(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	job := sampleJob("", time.Now())
	if err := store.Record(context.Background(), job); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, sampleJob(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	jobs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", jobs)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(all))
	}
}

func TestPruneRemovesTracks(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Record(ctx, sampleJob("old", old)); err != nil {
		t.Fatalf("Record old: %v", err)
	}
	if err := store.Record(ctx, sampleJob("new", recent)); err != nil {
		t.Fatalf("Record new: %v", err)
	}

	removed, err := store.Prune(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	tracks, err := store.Tracks(ctx, "old")
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 0 {
		t.Fatalf("expected tracks to be pruned, got %d", len(tracks))
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	_, err = history.OpenPath(path)
	if !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
