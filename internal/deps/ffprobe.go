package deps

import (
	"os/exec"
	"path/filepath"
	"strings"
)

// ResolveFFprobePath returns the ffprobe binary to execute. Explicit paths are
// returned unchanged; bare names are resolved from PATH when possible.
func ResolveFFprobePath(configured string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		configured = "ffprobe"
	}
	if strings.ContainsRune(configured, filepath.Separator) {
		return configured
	}
	if resolved, err := exec.LookPath(configured); err == nil {
		return resolved
	}
	return configured
}
