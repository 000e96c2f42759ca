package manifest_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"mmx/internal/manifest"
	"mmx/internal/services"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600)) }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readDoc(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return doc
}

func TestCheckpointCompletedPreservesFields(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "job.json")
	outputPath := filepath.Join(dir, "out.mkv")
	writeFile(t, manifestPath, `{"title":"Movie","tracks":[1,2],"nested":{"k":"v"}}`)
	writeFile(t, outputPath, "0123456789")

	res, err := manifest.Checkpoint(manifestPath, outputPath, manifest.Options{Completed: true, Now: fixedNow})
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if !res.Written || res.OutputSize == nil || *res.OutputSize != 10 {
		t.Fatalf("unexpected result: %+v", res)
	}

	doc := readDoc(t, manifestPath)
	if doc["title"] != "Movie" {
		t.Fatalf("title lost: %v", doc)
	}
	if nested, _ := doc["nested"].(map[string]any); nested["k"] != "v" {
		t.Fatalf("nested object lost: %v", doc)
	}
	if doc[manifest.KeyCompletedAt] != "2026-03-04T04:06:07Z" {
		t.Fatalf("completed_at = %v", doc[manifest.KeyCompletedAt])
	}
	if doc[manifest.KeyOutputSize] != float64(10) {
		t.Fatalf("output_size = %v", doc[manifest.KeyOutputSize])
	}
}

func TestCheckpointWithoutCompletionOmitsTimestamp(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "job.json")
	writeFile(t, manifestPath, `{"title":"Movie"}`)

	if _, err := manifest.Checkpoint(manifestPath, filepath.Join(dir, "missing.mkv"), manifest.Options{}); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	doc := readDoc(t, manifestPath)
	if _, ok := doc[manifest.KeyCompletedAt]; ok {
		t.Fatalf("completed_at must not be set on failure: %v", doc)
	}
	if v, ok := doc[manifest.KeyOutputSize]; !ok || v != nil {
		t.Fatalf("output_size should be null when the output is missing: %v", doc)
	}
}

func TestCheckpointSkipsSilently(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content *string
	}{
		{"missing", nil},
		{"garbage", ptr("{not json")},
		{"array", ptr(`[1,2,3]`)},
		{"string", ptr(`"hello"`)},
		{"null", ptr(`null`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if tt.content != nil {
				writeFile(t, path, *tt.content)
			}
			res, err := manifest.Checkpoint(path, filepath.Join(dir, "out.mkv"), manifest.Options{Completed: true})
			if err != nil {
				t.Fatalf("expected silent skip, got %v", err)
			}
			if res.Written || res.Skipped == "" {
				t.Fatalf("expected skip result, got %+v", res)
			}
			if tt.content == nil {
				if _, err := os.Stat(path); !os.IsNotExist(err) {
					t.Fatal("skip must not create the manifest")
				}
				return
			}
			data, _ := os.ReadFile(path)
			if string(data) != *tt.content {
				t.Fatalf("skip must not modify the manifest: %q", data)
			}
		})
	}
}

func TestCheckpointWriteFailureLeavesOriginal(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced")
	}
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "job.json")
	original := `{"title":"Movie"}`
	writeFile(t, manifestPath, original)
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	_, err := manifest.Checkpoint(manifestPath, filepath.Join(dir, "out.mkv"), manifest.Options{Completed: true})
	if !errors.Is(err, services.ErrManifestWrite) {
		t.Fatalf("expected ErrManifestWrite, got %v", err)
	}
	data, _ := os.ReadFile(manifestPath)
	if string(data) != original {
		t.Fatalf("original manifest modified: %q", data)
	}
}

func ptr(s string) *string { return &s }
