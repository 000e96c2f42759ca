package logging

import (
	"testing"
	"time"
)

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "playing") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "playing") {
		t.Error("first sample should log")
	}
	if s.ShouldLog(3.9, "playing") {
		t.Error("sample inside the same bucket should not log")
	}
	if !s.ShouldLog(5.1, "playing") {
		t.Error("crossing into the next bucket should log")
	}
	if s.ShouldLog(4, "playing") {
		t.Error("a lower bucket should never log again")
	}
	if !s.ShouldLog(100, "playing") {
		t.Error("completion should log")
	}
	if s.ShouldLog(100, "playing") {
		t.Error("repeated completion should not log")
	}
}

func TestProgressSampler_UnknownPercentLogsOnlyOnStageChange(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "playing") {
		t.Error("new stage should log even with unknown percent")
	}
	if s.ShouldLog(-1, "playing") {
		t.Error("unknown percent in the same stage should not log")
	}
	if !s.ShouldLog(-1, "draining") {
		t.Error("stage change should log")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "playing")
	s.Reset()
	if s.lastStage != "" || s.lastBucket != -1 {
		t.Fatalf("reset left state behind: stage=%q bucket=%d", s.lastStage, s.lastBucket)
	}
	if !s.ShouldLog(50, "playing") {
		t.Error("sample after reset should log")
	}
}

func TestEstimateRemaining(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		percent float64
		want    time.Duration
		ok      bool
	}{
		{"quarter done", 10 * time.Second, 25, 30 * time.Second, true},
		{"half done", time.Minute, 50, time.Minute, true},
		{"no progress", 10 * time.Second, 0, 0, false},
		{"finished", 10 * time.Second, 100, 0, false},
		{"no elapsed", 0, 40, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EstimateRemaining(tt.elapsed, tt.percent)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("EstimateRemaining(%s, %v) = %s, %v; want %s, %v", tt.elapsed, tt.percent, got, ok, tt.want, tt.ok)
			}
		})
	}
}
