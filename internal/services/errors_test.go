package services_test

import (
	"errors"
	"strings"
	"testing"

	"mmx/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrLinkFailed, "assembly", "link", "queue to mux", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrLinkFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assembly", "link", "queue to mux"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrPipelineRuntime) {
		t.Fatalf("expected runtime marker by default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsTrackFailure(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrUnroutable, "assembly", "classify", "application/x-custom", nil), true},
		{services.Wrap(services.ErrMuxerPadRefused, "assembly", "request pad", "", nil), true},
		{services.Wrap(services.ErrLinkFailed, "assembly", "link", "", nil), true},
		{services.Wrap(services.ErrPipelineRuntime, "monitor", "bus", "", nil), false},
		{services.Wrap(services.ErrBackendInit, "preflight", "", "", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.IsTrackFailure(tc.err); got != tc.want {
			t.Fatalf("IsTrackFailure(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
