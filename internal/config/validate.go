package config

import (
	"errors"
	"fmt"
)

const maxWaitSliceMS = 10_000

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend.Name {
	case BackendGStreamer, BackendMock:
	default:
		return fmt.Errorf("backend.name must be %q or %q, got %q", BackendGStreamer, BackendMock, c.Backend.Name)
	}
	switch c.Backend.Hardware {
	case "", "auto", "none", "vaapi", "nvidia", "qsv", "videotoolbox":
	default:
		return fmt.Errorf("backend.hardware %q is not a known hint", c.Backend.Hardware)
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if c.Monitor.WaitSliceMS <= 0 {
		return errors.New("monitor.wait_slice_ms must be positive")
	}
	if c.Monitor.WaitSliceMS > maxWaitSliceMS {
		return fmt.Errorf("monitor.wait_slice_ms must be <= %d", maxWaitSliceMS)
	}
	if c.Monitor.ProgressIntervalMS < 0 {
		return errors.New("monitor.progress_interval_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
