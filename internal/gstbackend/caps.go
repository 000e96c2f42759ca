package gstbackend

import (
	"github.com/tinyzimmer/go-gst/gst"

	"mmx/internal/routing"
)

// capsFields are the structure fields the classifier and logs care about.
var capsFields = []string{
	"mpegversion",
	"layer",
	"stream-format",
	"alignment",
	"parsed",
	"framed",
	"channels",
	"rate",
	"width",
	"height",
	"profile",
}

// describePad converts the pad's caps into a descriptor. Pads without caps
// yield an empty name, which the classifier treats as unroutable.
func describePad(pad *gst.Pad) routing.Descriptor {
	caps := pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		caps = pad.QueryCaps(nil)
	}
	if caps == nil || caps.GetSize() == 0 {
		return routing.NewDescriptor("", nil)
	}
	structure := caps.GetStructureAt(0)
	attrs := make(map[string]any, len(capsFields))
	for _, field := range capsFields {
		if val, err := structure.GetValue(field); err == nil && val != nil {
			attrs[field] = val
		}
	}
	return routing.NewDescriptor(structure.Name(), attrs)
}
