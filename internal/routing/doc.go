// Package routing decides where each discovered elementary stream goes.
//
// Classify maps a stream's capability Descriptor to the parser element it
// needs and the muxer pad template it attaches to. SelectMuxer maps an output
// file extension to the container multiplexer. Both are pure table lookups
// with no I/O, so they are safe to call from backend streaming threads.
package routing
