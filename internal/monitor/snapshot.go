package monitor

import (
	"math"
	"time"
)

// Snapshot is a point-in-time view of job progress. Position and Total are
// relative to the job window. Total and Percent are nil while unknown.
type Snapshot struct {
	Position time.Duration
	Total    *time.Duration
	Percent  *float64
}

func (s Snapshot) event(name string) progressEvent {
	ev := progressEvent{Event: name, PositionNS: nanos(s.Position), Pct: s.Percent}
	if s.Total != nil {
		ev.DurationNS = nanos(*s.Total)
	}
	return ev
}

// PercentOr returns the percent or fallback when unknown.
func (s Snapshot) PercentOr(fallback float64) float64 {
	if s.Percent == nil {
		return fallback
	}
	return *s.Percent
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
