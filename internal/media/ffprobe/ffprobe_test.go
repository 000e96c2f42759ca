package ffprobe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "duration": "12.000000"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "duration": "12.500000"},
    {"index": 2, "codec_name": "subrip", "codec_type": "subtitle"}
  ],
  "format": {"filename": "in.mp4", "nb_streams": 3, "duration": "12.500000", "size": "1000", "format_name": "mov,mp4"}
}`

func TestParseAndDuration(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.StreamCount("video") != 1 || result.StreamCount("AUDIO") != 1 || result.StreamCount("subtitle") != 1 {
		t.Fatalf("unexpected stream counts: %+v", result.Streams)
	}
	d, err := result.Duration()
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 12500*time.Millisecond {
		t.Fatalf("duration = %s", d)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		want    time.Duration
		wantErr bool
	}{
		{
			name: "container N/A",
			result: Result{
				Format:  Format{Duration: "N/A"},
				Streams: []Stream{{Duration: "3.0"}, {Duration: "4.5"}},
			},
			want: 4500 * time.Millisecond,
		},
		{
			name:    "nothing usable",
			result:  Result{Format: Format{Duration: "bad"}, Streams: []Stream{{Duration: "-1"}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.result.Duration()
			if tt.wantErr {
				if !errors.Is(err, ErrNoDuration) {
					t.Fatalf("expected ErrNoDuration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Duration: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestDurationProbeRunsBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + sampleJSON + "\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	probe := DurationProbe{Binary: stub, Path: filepath.Join(dir, "in.mp4")}
	d, err := probe.Duration(context.Background())
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 12500*time.Millisecond {
		t.Fatalf("duration = %s", d)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
