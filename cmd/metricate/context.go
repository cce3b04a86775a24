package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/tsawler/metricate/internal/config"
	"github.com/tsawler/metricate/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
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
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
			if !logging.ValidLevel(level) {
				c.configErr = fmt.Errorf("--log-level: unsupported value %q", *c.logLevelFlag)
				return
			}
			cfg.Logging.Level = level
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds a logger writing to the command's error stream.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	w := cmd.ErrOrStderr()
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: w,
		Color:  shouldColorize(w),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// inputArg returns the single optional file argument; "-" or none means
// standard input.
func inputArg(args []string) string {
	if len(args) == 0 || args[0] == "-" {
		return ""
	}
	return args[0]
}

func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(expanded, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
