package gstbackend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"

	"mmx/internal/logging"
	"mmx/internal/pipeline"
	"mmx/internal/services"
)

var initOnce sync.Once

func initGStreamer() {
	initOnce.Do(func() { gst.Init(nil) })
}

// Backend opens GStreamer sessions.
type Backend struct {
	logger *slog.Logger
}

// New returns a GStreamer backend.
func New(logger *slog.Logger) *Backend {
	return &Backend{logger: logging.NewComponentLogger(logger, "gstbackend")}
}

func (b *Backend) Name() string { return "gst" }

// Check instantiates each element kind once to prove its plugin is installed.
func (b *Backend) Check(kinds []pipeline.ElementKind) error {
	initGStreamer()
	var missing []string
	for _, kind := range kinds {
		elem, err := gst.NewElement(string(kind))
		if err != nil {
			missing = append(missing, string(kind))
			continue
		}
		_ = elem.SetState(gst.StateNull)
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrBackendInit, "preflight", "check elements",
			"missing GStreamer elements: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// Open builds the static graph for spec. Nothing plays until Execution().Play.
func (b *Backend) Open(ctx context.Context, spec pipeline.Spec) (pipeline.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	initGStreamer()
	logger := logging.WithContext(ctx, b.logger)

	s, err := newSession(spec, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrBackendInit, "open", "build pipeline", "", err)
	}
	if spec.Hints.Hardware != "" && spec.Hints.Hardware != "none" {
		logger.Info("hardware hint ignored for passthrough remux",
			logging.String("hardware", spec.Hints.Hardware),
		)
	}
	if spec.Hints.FrameRate > 0 || spec.Hints.CFR {
		logger.Debug("frame timing hints recorded",
			logging.Group("hints",
				logging.Float64("fps", spec.Hints.FrameRate),
				logging.Bool("cfr", spec.Hints.CFR),
			),
		)
	}
	return s, nil
}

func makeElement(kind pipeline.ElementKind) (*gst.Element, error) {
	elem, err := gst.NewElement(string(kind))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return elem, nil
}
