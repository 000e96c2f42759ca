// Package monitor drives a remux job to completion.
//
// The Monitor owns the RunState machine (Idle, Assembling, Playing,
// Draining, Completed, Failed), waits on the backend control bus in bounded
// slices, samples position and duration at a fixed cadence, and writes the
// JSON-lines progress stream through a Sink. Percent and position never move
// backwards, and the completion path is a single state transition, so a
// repeated end-of-stream cannot produce a second end event.
package monitor
