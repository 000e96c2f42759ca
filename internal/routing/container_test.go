package routing_test

import (
	"testing"

	"mmx/internal/routing"
)

func TestSelectMuxer(t *testing.T) {
	tests := []struct {
		ext  string
		want routing.MuxerKind
	}{
		{"mkv", routing.MuxerMatroska},
		{".MKV", routing.MuxerMatroska},
		{"matroska", routing.MuxerMatroska},
		{"webm", routing.MuxerWebM},
		{".WebM", routing.MuxerWebM},
		{"mp4", routing.MuxerMP4},
		{"m4v", routing.MuxerMP4},
		{"m4a", routing.MuxerMP4},
		{".mov", routing.MuxerMP4},
		{"avi", routing.MuxerMatroska},
		{"", routing.MuxerMatroska},
	}
	for _, tt := range tests {
		if got := routing.SelectMuxer(tt.ext); got != tt.want {
			t.Errorf("SelectMuxer(%q) = %s, want %s", tt.ext, got, tt.want)
		}
	}
}

func TestSelectMuxerForWebMOutput(t *testing.T) {
	if got := routing.SelectMuxerForPath("movie.webm"); got != routing.MuxerWebM {
		t.Fatalf("SelectMuxerForPath(movie.webm) = %s, want webm", got)
	}
}

func TestMuxerElement(t *testing.T) {
	tests := map[routing.MuxerKind]string{
		routing.MuxerMatroska: "matroskamux",
		routing.MuxerWebM:     "webmmux",
		routing.MuxerMP4:      "mp4mux",
	}
	for kind, want := range tests {
		if got := kind.Element(); got != want {
			t.Errorf("%s.Element() = %q, want %q", kind, got, want)
		}
	}
	if got := routing.SelectMuxerForPath("/tmp/out.dir/clip").Element(); got != "matroskamux" {
		t.Errorf("extensionless path should fall back to matroskamux, got %q", got)
	}
}
