package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"mmx/internal/fileutil"
	"mmx/internal/services"
)

// Keys written into the manifest. Every other key is left as it was.
const (
	KeyCompletedAt = "completed_at"
	KeyOutputSize  = "output_size"
)

// Options controls a checkpoint.
type Options struct {
	// Completed adds completed_at. Failed and cancelled jobs leave it out.
	Completed bool
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Result reports what a checkpoint did.
type Result struct {
	Written    bool
	Skipped    string
	OutputSize *int64
}

// Checkpoint records job completion in an existing JSON manifest. A missing
// or unparseable manifest, or one whose top level is not an object, is
// skipped without error. The update replaces the file atomically; failures
// carry services.ErrManifestWrite and leave the original untouched.
func Checkpoint(manifestPath, outputPath string, opts Options) (Result, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Skipped: "manifest not found"}, nil
		}
		return Result{Skipped: "manifest unreadable"}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return Result{Skipped: "manifest is not a JSON object"}, nil
	}

	var result Result
	if opts.Completed {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		stamp, _ := json.Marshal(now().UTC().Format(time.RFC3339))
		doc[KeyCompletedAt] = stamp
	}
	if size, ok := fileutil.FileSize(outputPath); ok {
		result.OutputSize = &size
		doc[KeyOutputSize] = json.RawMessage(fmt.Sprint(size))
	} else {
		doc[KeyOutputSize] = json.RawMessage("null")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return Result{}, services.Wrap(services.ErrManifestWrite, "checkpoint", "encode", manifestPath, err)
	}
	if err := fileutil.WriteFileAtomic(manifestPath, buf.Bytes(), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrManifestWrite, "checkpoint", "write", manifestPath, err)
	}
	result.Written = true
	return result, nil
}
