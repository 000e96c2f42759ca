// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// mmx only needs ffprobe for one thing: a total duration when the pipeline
// cannot report one (some fragmented or streamed inputs). DurationProbe plugs
// into the monitor as its duration fallback.
package ffprobe
