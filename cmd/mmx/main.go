package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mmx/internal/job"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode prints err and maps it onto a process status.
func exitCode(err error) int {
	var jobErr *job.Error
	if errors.As(err, &jobErr) {
		if jobErr.Kind != job.KindCancelled {
			fmt.Fprintln(os.Stderr, err)
		}
		return jobErr.ExitCode()
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	return 1
}
