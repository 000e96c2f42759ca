// Package mockbackend is a scripted element library used by tests and by
// `mmx remux --backend mock`.
//
// A Script lists the streams the fake demuxer exposes and the faults to
// inject: missing element kinds, refused pad templates, failed links, shared
// pad instances, runtime errors, duplicate end-of-stream messages. The clock
// is virtual: once discovery has run, every idle bus wait advances the
// position by one Step, so tests run in milliseconds.
package mockbackend
