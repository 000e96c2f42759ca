package routing_test

import (
	"testing"

	"mmx/internal/routing"
)

func TestDescriptorCopiesAttributes(t *testing.T) {
	attrs := map[string]any{"mpegversion": 4}
	desc := routing.NewDescriptor("audio/mpeg", attrs)
	attrs["mpegversion"] = 1

	if v, _ := desc.IntAttr("mpegversion"); v != 4 {
		t.Fatalf("descriptor changed with caller map: mpegversion=%d", v)
	}

	out := desc.Attrs()
	out["mpegversion"] = 2
	if v, _ := desc.IntAttr("mpegversion"); v != 4 {
		t.Fatalf("descriptor changed through Attrs copy: mpegversion=%d", v)
	}
}

func TestDescriptorIntAttr(t *testing.T) {
	desc := routing.NewDescriptor("audio/mpeg", map[string]any{
		"int8":     int8(2),
		"uint":     uint(7),
		"float":    float32(4),
		"fraction": 4.5,
		"string":   " 4 ",
		"fstring":  "1.0",
		"word":     "four",
		"bool":     true,
	})
	tests := []struct {
		key  string
		want int64
		ok   bool
	}{
		{"int8", 2, true},
		{"uint", 7, true},
		{"float", 4, true},
		{"fraction", 0, false},
		{"string", 4, true},
		{"fstring", 1, true},
		{"word", 0, false},
		{"bool", 0, false},
		{"missing", 0, false},
	}
	for _, tt := range tests {
		got, ok := desc.IntAttr(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("IntAttr(%q) = %d, %v; want %d, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseFamily(t *testing.T) {
	tests := map[string]routing.Family{
		"video/x-h264":         routing.FamilyH264,
		"video/x-h265":         routing.FamilyH265,
		"video/x-av1":          routing.FamilyVideoOther,
		"audio/mpeg":           routing.FamilyMPEGAudio,
		"audio/x-eac3":         routing.FamilyEAC3,
		"audio/x-raw":          routing.FamilyAudioOther,
		"text/x-raw":           routing.FamilySubtitle,
		"subtitle/x-dvb":       routing.FamilySubtitle,
		"application/x-custom": routing.FamilyUnrecognized,
		"video":                routing.FamilyUnrecognized,
	}
	for name, want := range tests {
		if got := routing.ParseFamily(name); got != want {
			t.Errorf("ParseFamily(%q) = %s, want %s", name, got, want)
		}
	}
}
