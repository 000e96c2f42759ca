package gstbackend

import (
	"path/filepath"
	"strings"

	"mmx/internal/pipeline"
)

// KindParseBin is used whenever the container cannot be told from its name.
const KindParseBin = pipeline.KindParseBin

var demuxers = map[string]pipeline.ElementKind{
	"mp4":  "qtdemux",
	"m4v":  "qtdemux",
	"m4a":  "qtdemux",
	"mov":  "qtdemux",
	"3gp":  "qtdemux",
	"mkv":  "matroskademux",
	"mka":  "matroskademux",
	"webm": "matroskademux",
	"ogg":  "oggdemux",
	"ogv":  "oggdemux",
	"oga":  "oggdemux",
	"opus": "oggdemux",
	"ts":   "tsdemux",
	"m2ts": "tsdemux",
	"mts":  "tsdemux",
	"flv":  "flvdemux",
	"avi":  "avidemux",
}

// DemuxerFor picks the demuxer element for an input path.
func DemuxerFor(path string) pipeline.ElementKind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if kind, ok := demuxers[ext]; ok {
		return kind
	}
	return KindParseBin
}
