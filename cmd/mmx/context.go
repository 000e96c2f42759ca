package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mmx/internal/config"
	"mmx/internal/gstbackend"
	"mmx/internal/history"
	"mmx/internal/logging"
	"mmx/internal/mockbackend"
	"mmx/internal/pipeline"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds the process logger. Logs go to stderr; stdout is reserved
// for the progress stream and command output.
func (c *commandContext) logger(stderr io.Writer) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	if cfg.Logging.File {
		copyCfg := *cfg
		copyCfg.Logging.Level = level
		return logging.NewFromConfig(&copyCfg)
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
		Writer: stderr,
	})
}

// backend resolves the backend by name; an empty name uses the config.
func (c *commandContext) backend(name string, logger *slog.Logger) (pipeline.Backend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = cfg.Backend.Name
	}
	switch name {
	case config.BackendGStreamer:
		return gstbackend.New(logger), nil
	case config.BackendMock:
		return mockbackend.New(mockbackend.DefaultScript()), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", name, config.BackendGStreamer, config.BackendMock)
	}
}

// openHistory opens the ledger, or returns nil when it is disabled.
func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
