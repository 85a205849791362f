package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"comicreel/internal/config"
	"comicreel/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
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

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureLogger builds the process logger once: stdout plus the log file
// under the configured log directory, with the command-line flags taking
// precedence over the [logging] config section.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := cfg.Logging.Level
		if v := flagValue(c.logLevelFlag); v != "" {
			level = v
		}
		format := cfg.Logging.Format
		if v := flagValue(c.logFormatFlag); v != "" {
			format = v
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       level,
			Format:      format,
			OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "comicreel.log")},
		})
	})
	return c.logger, c.loggerErr
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

// signalContext cancels on SIGINT and SIGTERM so a Ctrl-C unwinds jobs
// through their contexts instead of killing the process mid-encode.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// progressBarsEnabled reports whether interactive progress bars should
// render: only on a terminal, and never under JSON logging where they
// would corrupt the stream.
func progressBarsEnabled(cfg *config.Config, logFormatFlag *string) bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return false
	}
	format := flagValue(logFormatFlag)
	if format == "" && cfg != nil {
		format = cfg.Logging.Format
	}
	return !strings.EqualFold(format, "json")
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
