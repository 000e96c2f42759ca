// Package pipeline assembles the live remux graph.
//
// A backend opens a Session with the source, demuxer, muxer, and sink in
// place. As the demuxer exposes streams, the Assembler classifies each one
// once and attaches a queue (plus a parser when required) to a fresh muxer
// request pad. A failure is confined to its own track: any partially added
// elements are removed and a requested pad is released, so the rest of the
// job keeps running.
//
// Backend callbacks hold a Handle rather than the Assembler itself. A Handle
// does not keep the graph alive, and after Detach every late event is a
// no-op that returns ErrGraphClosed.
package pipeline
