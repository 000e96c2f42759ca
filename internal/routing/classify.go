package routing

// ParserKind names the bitstream parser element inserted ahead of the muxer.
// The empty kind means no parser.
type ParserKind string

const (
	ParserNone      ParserKind = ""
	ParserH264      ParserKind = "h264parse"
	ParserH265      ParserKind = "h265parse"
	ParserAAC       ParserKind = "aacparse"
	ParserMPEGAudio ParserKind = "mpegaudioparse"
	ParserAC3       ParserKind = "ac3parse"
	ParserOpus      ParserKind = "opusparse"
	ParserVorbis    ParserKind = "vorbisparse"
)

// PadTemplate names the muxer request-pad template a track attaches to. The
// empty template marks the track unroutable.
type PadTemplate string

const (
	PadNone     PadTemplate = ""
	PadVideo    PadTemplate = "video_%u"
	PadAudio    PadTemplate = "audio_%u"
	PadSubtitle PadTemplate = "subtitle_%u"
)

// Decision is the classifier's verdict for one track.
type Decision struct {
	Parser      ParserKind
	PadTemplate PadTemplate
}

// HasParser reports whether a parser element is required.
func (d Decision) HasParser() bool { return d.Parser != ParserNone }

// Routable reports whether the track can be attached to the muxer.
func (d Decision) Routable() bool { return d.PadTemplate != PadNone }

var familyDecisions = map[Family]Decision{
	FamilyH264:       {Parser: ParserH264, PadTemplate: PadVideo},
	FamilyH265:       {Parser: ParserH265, PadTemplate: PadVideo},
	FamilyVideoOther: {PadTemplate: PadVideo},
	FamilyAC3:        {Parser: ParserAC3, PadTemplate: PadAudio},
	FamilyEAC3:       {Parser: ParserAC3, PadTemplate: PadAudio},
	FamilyOpus:       {Parser: ParserOpus, PadTemplate: PadAudio},
	FamilyVorbis:     {Parser: ParserVorbis, PadTemplate: PadAudio},
	FamilyAudioOther: {PadTemplate: PadAudio},
	FamilySubtitle:   {PadTemplate: PadSubtitle},
}

// Classify returns the parser and muxer pad template for a stream. It is pure
// and deterministic; unrecognized media yields the zero Decision.
func Classify(desc Descriptor) Decision {
	family := desc.Family()
	if family == FamilyMPEGAudio {
		return Decision{Parser: mpegAudioParser(desc), PadTemplate: PadAudio}
	}
	return familyDecisions[family]
}

// mpegAudioParser separates AAC (MPEG-4) from layer 1-3 audio (MPEG-1/2).
// Without a usable mpegversion the stream is passed through unparsed.
func mpegAudioParser(desc Descriptor) ParserKind {
	version, ok := desc.IntAttr("mpegversion")
	if !ok {
		return ParserNone
	}
	switch version {
	case 4:
		return ParserAAC
	case 1, 2:
		return ParserMPEGAudio
	default:
		return ParserNone
	}
}
