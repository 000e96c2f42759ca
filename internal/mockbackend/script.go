package mockbackend

import (
	"time"

	"mmx/internal/pipeline"
	"mmx/internal/routing"
)

// Script describes how a mock session behaves. The zero value is a job with
// no streams; DefaultScript returns a realistic two-track input.
type Script struct {
	Streams []routing.Descriptor

	// Duration is the full input length. Playback runs from the job window's
	// start to its stop (or to Duration).
	Duration time.Duration
	// DurationUnknown makes Duration() never answer.
	DurationUnknown bool
	// DurationAfterTicks delays the first duration answer by that many clock ticks.
	DurationAfterTicks int
	// Step is how far the position advances on each idle bus wait.
	Step time.Duration
	// EOSCount is how many end-of-stream messages to emit. Defaults to 1.
	EOSCount int
	// EarlyPlaying reports the running state before any stream is discovered.
	EarlyPlaying bool
	// ConcurrentDiscovery delivers each stream from its own goroutine.
	ConcurrentDiscovery bool
	// ErrorAfterTicks injects a runtime error on that tick (0 disables).
	ErrorAfterTicks int
	Error           pipeline.BusError
	// Stall makes Pop block for the full timeout instead of advancing the clock.
	Stall bool
	// OutputBytes is written to the output path on end-of-stream.
	OutputBytes int

	MissingKinds    []pipeline.ElementKind
	FailMake        []pipeline.ElementKind
	RefuseTemplates []routing.PadTemplate
	// FailAddCalls fails the Nth call to Add (0-based).
	FailAddCalls []int
	// FailMuxLinkRequests fails linking to the Nth requested muxer pad.
	FailMuxLinkRequests []int
	// ShareFirstPadOn returns the first muxer pad again for the Nth request.
	ShareFirstPadOn []int
}

// DefaultScript is used by `mmx remux --backend mock`: an H.264 video track,
// an AAC audio track, and an opaque data stream that cannot be routed.
func DefaultScript() Script {
	return Script{
		Streams: []routing.Descriptor{
			routing.NewDescriptor("video/x-h264", map[string]any{"stream-format": "avc", "width": 1920, "height": 1080}),
			routing.NewDescriptor("audio/mpeg", map[string]any{"mpegversion": 4, "channels": 2}),
			routing.NewDescriptor("application/x-custom", nil),
		},
		Duration:    10 * time.Second,
		Step:        500 * time.Millisecond,
		EOSCount:    1,
		OutputBytes: 4096,
	}
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsKind(values []pipeline.ElementKind, v pipeline.ElementKind) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func containsTemplate(values []routing.PadTemplate, v routing.PadTemplate) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
