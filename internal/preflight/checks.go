package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"mmx/internal/config"
	"mmx/internal/deps"
	"mmx/internal/pipeline"
	"mmx/internal/services"
)

// CheckInputFile verifies the input exists, is a regular file, and is readable.
func CheckInputFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckDistinctPaths rejects jobs that would overwrite their own input.
func CheckDistinctPaths(input, output string) Result {
	const name = "Output path"
	if output == "" {
		return Result{Name: name, Detail: "missing output path"}
	}
	inAbs, errIn := filepath.Abs(input)
	outAbs, errOut := filepath.Abs(output)
	if errIn == nil && errOut == nil && inAbs == outAbs {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: output would overwrite input)", output)}
	}
	return Result{Name: name, Passed: true, Detail: output}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBackend asks the backend whether every element kind the job needs is
// available.
func CheckBackend(_ context.Context, backend pipeline.Backend, kinds []pipeline.ElementKind) Result {
	name := fmt.Sprintf("Backend %s", backend.Name())
	if err := backend.Check(kinds); err != nil {
		return Result{Name: name, Detail: err.Error(), Marker: services.ErrBackendInit}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d elements available", len(kinds))}
}

// CheckSystemDeps evaluates optional external binaries for the given config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	var requirements []deps.Requirement
	if cfg.Monitor.FFprobeFallback {
		requirements = append(requirements, deps.Requirement{
			Name:        "FFprobe",
			Command:     deps.ResolveFFprobePath(cfg.FFprobeBinary()),
			Description: "Supplies input duration when the pipeline cannot",
			Optional:    true,
		})
	}
	return deps.CheckBinaries(requirements)
}
