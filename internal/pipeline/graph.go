package pipeline

// Graph is the job's live element graph as seen by the assembler: every
// element added for a track, the muxer pad instances handed out, and every
// track ever discovered.
type Graph struct {
	builder  Builder
	muxer    Element
	elements map[Element]int
	muxPads  map[Pad]int
	tracks   []*Track
}

func newGraph(builder Builder, muxer Element) *Graph {
	return &Graph{
		builder:  builder,
		muxer:    muxer,
		elements: make(map[Element]int),
		muxPads:  make(map[Pad]int),
	}
}

func (g *Graph) register(t *Track) {
	g.tracks = append(g.tracks, t)
}

// claimPad records pad as owned by track id. It returns false when the pad
// instance is already linked to another track.
func (g *Graph) claimPad(pad Pad, trackID int) bool {
	if owner, ok := g.muxPads[pad]; ok && owner != trackID {
		return false
	}
	g.muxPads[pad] = trackID
	return true
}

func (g *Graph) adopt(trackID int, elems []Element) {
	for _, e := range elems {
		g.elements[e] = trackID
	}
}

func (g *Graph) reports() []TrackReport {
	out := make([]TrackReport, 0, len(g.tracks))
	for _, t := range g.tracks {
		out = append(out, t.report())
	}
	return out
}

func (g *Graph) linkedCount() int {
	n := 0
	for _, t := range g.tracks {
		if t.State == TrackLinked {
			n++
		}
	}
	return n
}
