package routing

import (
	"path/filepath"
	"strings"
)

// MuxerKind is the output container family.
type MuxerKind int

const (
	MuxerMatroska MuxerKind = iota
	MuxerWebM
	MuxerMP4
)

// Element returns the multiplexer element name for the kind.
func (m MuxerKind) Element() string {
	switch m {
	case MuxerWebM:
		return "webmmux"
	case MuxerMP4:
		return "mp4mux"
	default:
		return "matroskamux"
	}
}

func (m MuxerKind) String() string {
	switch m {
	case MuxerWebM:
		return "webm"
	case MuxerMP4:
		return "mp4"
	default:
		return "matroska"
	}
}

var muxerByExtension = map[string]MuxerKind{
	"mkv":      MuxerMatroska,
	"matroska": MuxerMatroska,
	"webm":     MuxerWebM,
	"mp4":      MuxerMP4,
	"m4v":      MuxerMP4,
	"m4a":      MuxerMP4,
	"mov":      MuxerMP4,
}

// SelectMuxer maps an output extension (with or without the leading dot, any
// case) to a container family. Unknown extensions fall back to Matroska.
func SelectMuxer(ext string) MuxerKind {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if kind, ok := muxerByExtension[ext]; ok {
		return kind
	}
	return MuxerMatroska
}

// SelectMuxerForPath applies SelectMuxer to the extension of path.
func SelectMuxerForPath(path string) MuxerKind {
	return SelectMuxer(filepath.Ext(path))
}
