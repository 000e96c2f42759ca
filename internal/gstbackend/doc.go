// Package gstbackend implements pipeline.Backend on GStreamer through go-gst.
//
// A session builds the static part of the graph up front:
//
//	filesrc location=<input> ! <demuxer>    <muxer> ! filesink location=<output>
//
// The demuxer is chosen from the input extension, with parsebin as the
// fallback for anything unrecognized. Each pad the demuxer exposes is
// described from its caps and handed to the discovery callback; the
// assembler decides how to bridge it to the muxer.
//
// A trim window is applied with one flushing, accurate seek on the whole
// pipeline once it has prerolled, so every track shifts by the same amount.
package gstbackend
