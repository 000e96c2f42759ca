package routing

import (
	"maps"
	"math"
	"strconv"
	"strings"
)

// Family is the closed set of media families the classifier distinguishes.
type Family int

const (
	FamilyUnrecognized Family = iota
	FamilyH264
	FamilyH265
	FamilyVideoOther
	FamilyMPEGAudio
	FamilyAC3
	FamilyEAC3
	FamilyOpus
	FamilyVorbis
	FamilyAudioOther
	FamilySubtitle
)

var familyNames = map[Family]string{
	FamilyUnrecognized: "unrecognized",
	FamilyH264:         "h264",
	FamilyH265:         "h265",
	FamilyVideoOther:   "video",
	FamilyMPEGAudio:    "mpeg-audio",
	FamilyAC3:          "ac3",
	FamilyEAC3:         "eac3",
	FamilyOpus:         "opus",
	FamilyVorbis:       "vorbis",
	FamilyAudioOther:   "audio",
	FamilySubtitle:     "subtitle",
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return "unrecognized"
}

var exactFamilies = map[string]Family{
	"video/x-h264":   FamilyH264,
	"video/x-h265":   FamilyH265,
	"audio/mpeg":     FamilyMPEGAudio,
	"audio/x-ac3":    FamilyAC3,
	"audio/x-eac3":   FamilyEAC3,
	"audio/x-opus":   FamilyOpus,
	"audio/x-vorbis": FamilyVorbis,
}

// ParseFamily maps a media type name onto its family. Matching is exact for
// known codecs and prefix based for the generic audio, video, and subtitle
// groups.
func ParseFamily(name string) Family {
	name = strings.ToLower(strings.TrimSpace(name))
	if family, ok := exactFamilies[name]; ok {
		return family
	}
	switch {
	case strings.HasPrefix(name, "video/"):
		return FamilyVideoOther
	case strings.HasPrefix(name, "audio/"):
		return FamilyAudioOther
	case strings.HasPrefix(name, "subtitle/"), strings.HasPrefix(name, "text/"):
		return FamilySubtitle
	default:
		return FamilyUnrecognized
	}
}

// Descriptor is the immutable capability description of a discovered stream:
// a media type name plus typed attributes such as mpegversion or channels.
type Descriptor struct {
	name  string
	attrs map[string]any
}

// NewDescriptor builds a descriptor. The attribute map is copied.
func NewDescriptor(name string, attrs map[string]any) Descriptor {
	return Descriptor{
		name:  strings.TrimSpace(name),
		attrs: maps.Clone(attrs),
	}
}

// Name returns the media type name, e.g. "video/x-h264".
func (d Descriptor) Name() string { return d.name }

// Family returns the closed family for the descriptor's name.
func (d Descriptor) Family() Family { return ParseFamily(d.name) }

// Attr returns a raw attribute value.
func (d Descriptor) Attr(key string) (any, bool) {
	v, ok := d.attrs[key]
	return v, ok
}

// Attrs returns a copy of all attributes.
func (d Descriptor) Attrs() map[string]any {
	return maps.Clone(d.attrs)
}

// IntAttr returns an attribute as an integer. Any integer kind, an integral
// float, or a numeric string is accepted.
func (d Descriptor) IntAttr(key string) (int64, bool) {
	v, ok := d.attrs[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func (d Descriptor) String() string {
	if d.name == "" {
		return "(empty)"
	}
	return d.name
}
