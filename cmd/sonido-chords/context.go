package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/store"
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
		c.config = cfg
	})
	return c.config, c.configErr
}

// configureLogging sends log output to stderr so stdout stays machine-readable.
func (c *commandContext) configureLogging(cmd *cobra.Command, cfg *config.Config) error {
	levelName := ""
	if cfg != nil {
		levelName = cfg.Logging.Level
	}
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		levelName = *c.logLevelFlag
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	logger := logging.NewWriterLogger(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return nil
}

func (c *commandContext) openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return s, nil
}

func (c *commandContext) withStore(ctx context.Context, fn func(*store.Store) error) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
