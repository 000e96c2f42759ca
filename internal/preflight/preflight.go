package preflight

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"mmx/internal/pipeline"
	"mmx/internal/routing"
	"mmx/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Marker classifies a failure for errors.Is at the job boundary.
	Marker error
}

// Request describes the job being checked.
type Request struct {
	Input   string
	Output  string
	Backend pipeline.Backend
	Muxer   routing.MuxerKind
}

// RunAll executes every check that applies to the request. Checks are
// independent; all of them run even when an earlier one fails.
func RunAll(ctx context.Context, req Request) []Result {
	var results []Result

	results = append(results, CheckInputFile("Input file", req.Input))
	results = append(results, CheckDistinctPaths(req.Input, req.Output))
	results = append(results, CheckDirectoryAccess("Output directory", filepath.Dir(req.Output)))

	if req.Backend != nil {
		results = append(results, CheckBackend(ctx, req.Backend, pipeline.RequiredKinds(req.Muxer)))
	}
	return results
}

// FirstFailure converts the first failed result into a tagged error, or
// returns nil when every check passed.
func FirstFailure(results []Result) error {
	for _, r := range results {
		if r.Passed {
			continue
		}
		marker := r.Marker
		if marker == nil {
			marker = services.ErrConfiguration
		}
		return services.Wrap(marker, "preflight", strings.ToLower(r.Name), r.Detail, nil)
	}
	return nil
}

// Summary renders failed checks for logs.
func Summary(results []Result) string {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	return strings.Join(failed, "; ")
}
