package pipeline

import "mmx/internal/routing"

// ElementKind is a factory name in the element library, e.g. "queue".
type ElementKind string

const (
	KindFileSource ElementKind = "filesrc"
	KindFileSink   ElementKind = "filesink"
	KindQueue      ElementKind = "queue"
	KindParseBin   ElementKind = "parsebin"
)

// ParserElement converts a parser decision into the element kind to build.
func ParserElement(p routing.ParserKind) ElementKind { return ElementKind(p) }

// MuxerElement converts a container family into its muxer element kind.
func MuxerElement(m routing.MuxerKind) ElementKind { return ElementKind(m.Element()) }

// RequiredKinds lists the element kinds a job cannot run without. Parsers are
// checked lazily: a missing parser fails only the tracks that need it.
func RequiredKinds(muxer routing.MuxerKind) []ElementKind {
	return []ElementKind{KindFileSource, KindQueue, MuxerElement(muxer), KindFileSink}
}

// Element is an opaque processing node owned by a backend.
type Element interface {
	Name() string
	Kind() ElementKind
}

// Pad is an opaque connection point on an element. Implementations must be
// comparable (pointer types) so the graph can track pad instances.
type Pad interface {
	Name() string
}

// Builder is the graph-mutation surface of the element library.
type Builder interface {
	// Make instantiates a new element of the given kind.
	Make(kind ElementKind) (Element, error)
	// Add attaches elements to the graph. It is all-or-nothing.
	Add(elems ...Element) error
	// Remove detaches elements and drops their links.
	Remove(elems ...Element) error
	// Sync brings elements to the running state of the graph.
	Sync(elems ...Element) error
	// LinkPad links a discovered source pad to the element's sink.
	LinkPad(src Pad, sink Element) error
	// Link links two elements.
	Link(src, sink Element) error
	// RequestPad asks the muxer for a new pad instance from template.
	RequestPad(muxer Element, template routing.PadTemplate) (Pad, error)
	// LinkToPad links an element's source to a specific sink pad.
	LinkToPad(src Element, sink Pad) error
	// ReleasePad returns a requested pad to the muxer.
	ReleasePad(muxer Element, pad Pad) error
}
