package main

import (
	"log/slog"
	"strings"
	"sync"

	"murmur/internal/config"
	"murmur/internal/daemon"
	"murmur/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

// cliLogger keeps one-shot commands quiet: warnings and errors go to stderr,
// everything else is dropped.
func cliLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withDaemon builds the service graph for a one-shot command, runs fn, and
// tears the graph down again. The background loops are never started.
func (c *commandContext) withDaemon(fn func(*daemon.Daemon) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	d, err := daemon.New(cfg, cliLogger())
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}
