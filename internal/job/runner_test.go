package job_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"mmx/internal/config"
	"mmx/internal/history"
	"mmx/internal/job"
	"mmx/internal/logging"
	"mmx/internal/mockbackend"
	"mmx/internal/monitor"
	"mmx/internal/pipeline"
	"mmx/internal/routing"
	"mmx/internal/testsupport"
)

type env struct {
	cfg     *config.Config
	dir     string
	input   string
	output  string
	store   *history.Store
	backend *mockbackend.Backend
	runner  *job.Runner
}

func newEnv(t *testing.T, script mockbackend.Script) *env {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	testsupport.WriteFile(t, input, 64)
	store := testsupport.MustOpenHistory(t, cfg)
	backend := mockbackend.New(script)
	return &env{
		cfg:     cfg,
		dir:     dir,
		input:   input,
		output:  filepath.Join(dir, "out.mkv"),
		store:   store,
		backend: backend,
		runner:  job.NewRunner(cfg, backend, store, logging.NewNop()),
	}
}

func events(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		out = append(out, ev)
	}
	return out
}

func writeManifest(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(`{"title":"Example","tracks":3}`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func readManifest(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return doc
}

func TestRunCompletesAndRecords(t *testing.T) {
	e := newEnv(t, mockbackend.DefaultScript())
	manifestPath := filepath.Join(e.dir, "job.json")
	writeManifest(t, manifestPath)
	var progress bytes.Buffer

	summary, err := e.runner.Run(context.Background(), job.Options{
		Input:    e.input,
		Output:   e.output,
		Manifest: manifestPath,
		Hints:    pipeline.Hints{FrameRate: 23.976, CFR: true},
		Progress: &progress,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Status != monitor.StatusCompleted || summary.State != monitor.StateCompleted {
		t.Fatalf("unexpected outcome: %s/%s", summary.Status, summary.State)
	}
	if summary.Muxer != routing.MuxerMatroska {
		t.Fatalf("expected matroska muxer, got %s", summary.Muxer)
	}
	if len(summary.Linked()) != 2 {
		t.Fatalf("expected 2 linked tracks, got %+v", summary.Tracks)
	}
	failed := summary.Failed()
	if len(failed) != 1 || failed[0].Reason != pipeline.ReasonUnroutable {
		t.Fatalf("expected one unroutable track, got %+v", failed)
	}
	if summary.OutputSize == nil || *summary.OutputSize != 4096 {
		t.Fatalf("unexpected output size %v", summary.OutputSize)
	}

	evs := events(t, &progress)
	if len(evs) < 3 {
		t.Fatalf("expected start, progress, and end events, got %d", len(evs))
	}
	if evs[0]["event"] != "start" || evs[0]["job_id"] != summary.JobID || evs[0]["muxer"] != "matroskamux" {
		t.Fatalf("unexpected start event: %v", evs[0])
	}
	if last := evs[len(evs)-1]; last["event"] != "end" || last["pct"] != 100.0 {
		t.Fatalf("unexpected final event: %v", last)
	}

	doc := readManifest(t, manifestPath)
	if doc["title"] != "Example" {
		t.Fatalf("manifest lost existing fields: %v", doc)
	}
	if _, ok := doc["completed_at"].(string); !ok {
		t.Fatalf("manifest missing completed_at: %v", doc)
	}
	if doc["output_size"] != 4096.0 {
		t.Fatalf("manifest output_size = %v", doc["output_size"])
	}

	recorded, err := e.store.Get(context.Background(), summary.JobID)
	if err != nil || recorded == nil {
		t.Fatalf("expected history record, got %v (err=%v)", recorded, err)
	}
	if recorded.Status != "completed" || recorded.LinkedTracks != 2 || recorded.FailedTracks != 1 {
		t.Fatalf("unexpected ledger row: %+v", recorded)
	}
	if !recorded.CFR || len(recorded.Tracks) != 3 {
		t.Fatalf("ledger lost hints or tracks: %+v", recorded)
	}
	if _, err := os.Stat(e.output + ".lock"); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err=%v", err)
	}
}

func TestRunSelectsMuxerFromOutputExtension(t *testing.T) {
	e := newEnv(t, mockbackend.DefaultScript())
	summary, err := e.runner.Run(context.Background(), job.Options{
		Input:  e.input,
		Output: filepath.Join(e.dir, "out.MP4"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Muxer != routing.MuxerMP4 {
		t.Fatalf("expected mp4 muxer, got %s", summary.Muxer)
	}
	if got := e.backend.LastSession().Spec().Muxer; got != routing.MuxerMP4 {
		t.Fatalf("backend opened with %s", got)
	}
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mockbackend.Script)
		opts   func(e *env) job.Options
		want   job.ErrorKind
	}{
		{
			name:   "missing element",
			mutate: func(s *mockbackend.Script) { s.MissingKinds = []pipeline.ElementKind{pipeline.KindQueue} },
			want:   job.KindBackendInit,
		},
		{
			name: "runtime error",
			mutate: func(s *mockbackend.Script) {
				s.ErrorAfterTicks = 2
				s.Error = pipeline.BusError{Message: "internal data stream error", Debug: "qtdemux0: not-negotiated"}
			},
			want: job.KindPipelineRuntime,
		},
		{
			name: "nothing routable",
			mutate: func(s *mockbackend.Script) {
				s.Streams = []routing.Descriptor{routing.NewDescriptor("application/x-custom", nil)}
			},
			want: job.KindNoLinkedTracks,
		},
		{
			name: "inverted window",
			opts: func(e *env) job.Options {
				return job.Options{Input: e.input, Output: e.output, Window: pipeline.Window{Start: 5 * time.Second, Stop: 2 * time.Second}}
			},
			want: job.KindConfiguration,
		},
		{
			name: "missing input",
			opts: func(e *env) job.Options {
				return job.Options{Input: filepath.Join(e.dir, "missing.mp4"), Output: e.output}
			},
			want: job.KindConfiguration,
		},
		{
			name: "negative frame rate",
			opts: func(e *env) job.Options {
				return job.Options{Input: e.input, Output: e.output, Hints: pipeline.Hints{FrameRate: -1}}
			},
			want: job.KindConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := mockbackend.DefaultScript()
			if tt.mutate != nil {
				tt.mutate(&script)
			}
			e := newEnv(t, script)
			opts := job.Options{Input: e.input, Output: e.output}
			if tt.opts != nil {
				opts = tt.opts(e)
			}

			summary, err := e.runner.Run(context.Background(), opts)
			var jobErr *job.Error
			if !errors.As(err, &jobErr) {
				t.Fatalf("expected *job.Error, got %v", err)
			}
			if jobErr.Kind != tt.want {
				t.Fatalf("kind = %s, want %s (%v)", jobErr.Kind, tt.want, err)
			}
			if summary == nil || summary.Err != jobErr {
				t.Fatalf("summary should carry the error: %+v", summary)
			}

			recorded, err := e.store.Get(context.Background(), summary.JobID)
			if err != nil || recorded == nil {
				t.Fatalf("failed jobs are recorded too (err=%v)", err)
			}
			if recorded.Status != "failed" || recorded.ErrorKind != string(tt.want) {
				t.Fatalf("unexpected ledger row: %+v", recorded)
			}
		})
	}
}

func TestRunRuntimeErrorLeavesManifestIncomplete(t *testing.T) {
	script := mockbackend.DefaultScript()
	script.ErrorAfterTicks = 3
	script.Error = pipeline.BusError{Message: "could not write to resource", Category: "resource"}
	e := newEnv(t, script)
	manifestPath := filepath.Join(e.dir, "job.json")
	writeManifest(t, manifestPath)
	var progress bytes.Buffer

	_, err := e.runner.Run(context.Background(), job.Options{
		Input: e.input, Output: e.output, Manifest: manifestPath, Progress: &progress,
	})
	if err == nil {
		t.Fatal("expected failure")
	}
	doc := readManifest(t, manifestPath)
	if _, ok := doc["completed_at"]; ok {
		t.Fatalf("failed job must not set completed_at: %v", doc)
	}
	if _, ok := doc["output_size"]; !ok {
		t.Fatalf("output_size should be set (possibly null): %v", doc)
	}
	evs := events(t, &progress)
	if last := evs[len(evs)-1]; last["event"] != "error" {
		t.Fatalf("expected terminal error event, got %v", last)
	}
}

func TestRunRefusesLockedOutput(t *testing.T) {
	e := newEnv(t, mockbackend.DefaultScript())
	held := flock.New(e.output + ".lock")
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-lock output: ok=%v err=%v", ok, err)
	}
	defer held.Unlock()

	_, err = e.runner.Run(context.Background(), job.Options{Input: e.input, Output: e.output})
	var jobErr *job.Error
	if !errors.As(err, &jobErr) || jobErr.Kind != job.KindOutputLocked {
		t.Fatalf("expected output_locked, got %v", err)
	}
	if jobErr.ExitCode() != 4 {
		t.Fatalf("exit code = %d", jobErr.ExitCode())
	}
	if e.backend.LastSession() != nil {
		t.Fatal("no session should open while the output is locked")
	}
}

type cancelOnProgress struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	cancel context.CancelFunc
}

func (c *cancelOnProgress) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.Contains(string(p), `"event":"progress"`) {
		c.cancel()
	}
	return c.buf.Write(p)
}

func TestRunCancellation(t *testing.T) {
	script := mockbackend.DefaultScript()
	script.Duration = time.Hour
	e := newEnv(t, script)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &cancelOnProgress{cancel: cancel}

	summary, err := e.runner.Run(ctx, job.Options{Input: e.input, Output: e.output, Progress: w})
	var jobErr *job.Error
	if !errors.As(err, &jobErr) || jobErr.Kind != job.KindCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if summary.Status != monitor.StatusCancelled || summary.State != monitor.StateFailed {
		t.Fatalf("unexpected outcome %s/%s", summary.Status, summary.State)
	}
	if !e.backend.LastSession().Stopped() || !e.backend.LastSession().Closed() {
		t.Fatal("expected backend stopped and closed")
	}
	recorded, err := e.store.Get(context.Background(), summary.JobID)
	if err != nil || recorded == nil || recorded.Status != "cancelled" {
		t.Fatalf("expected cancelled ledger row, got %+v (err=%v)", recorded, err)
	}
}

func TestRunWindowNarrowsTotal(t *testing.T) {
	e := newEnv(t, mockbackend.DefaultScript())
	summary, err := e.runner.Run(context.Background(), job.Options{
		Input:  e.input,
		Output: e.output,
		Window: pipeline.Window{Start: 2 * time.Second, Stop: 6 * time.Second},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Final.Total == nil || *summary.Final.Total != 4*time.Second {
		t.Fatalf("expected 4s span, got %v", summary.Final.Total)
	}
	if got := e.backend.LastSession().Spec().Window; got.Start != 2*time.Second {
		t.Fatalf("window not passed to backend: %+v", got)
	}
}

func TestRunDryRunDoesNotPlay(t *testing.T) {
	e := newEnv(t, mockbackend.DefaultScript())
	summary, err := e.runner.Run(context.Background(), job.Options{Input: e.input, Output: e.output, DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(summary.Plan, "matroskamux") {
		t.Fatalf("plan missing muxer: %q", summary.Plan)
	}
	if _, err := os.Stat(e.output); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write output (stat err=%v)", err)
	}
	jobs, err := e.store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("dry runs are not recorded, got %d", len(jobs))
	}
}

func TestRunWithoutHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutHistory())
	dir := t.TempDir()
	input := filepath.Join(dir, "in.webm")
	testsupport.WriteFile(t, input, 16)
	runner := job.NewRunner(cfg, mockbackend.New(mockbackend.DefaultScript()), nil, logging.NewNop())

	summary, err := runner.Run(context.Background(), job.Options{Input: input, Output: filepath.Join(dir, "out.webm")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Muxer != routing.MuxerWebM {
		t.Fatalf("expected webm muxer, got %s", summary.Muxer)
	}
}
