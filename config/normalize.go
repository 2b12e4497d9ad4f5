package config

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

func (c *Config) normalize() error {
	c.normalizeDetection()
	c.normalizeFrontend()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeServer()
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func (c *Config) normalizeDetection() {
	d := &c.Detection
	d.QualitySet = lowerOr(d.QualitySet, tonal.QualitySetMinimal)
	d.Scoring = strings.ToLower(strings.TrimSpace(d.Scoring))
	d.KeyMethod = strings.ToLower(strings.TrimSpace(d.KeyMethod))
	d.TotalDuration = strings.ToLower(strings.TrimSpace(d.TotalDuration))
}

func (c *Config) normalizeFrontend() {
	f := &c.Frontend
	f.Window = lowerOr(f.Window, Default().Frontend.Window)
	if strings.TrimSpace(f.FFmpegPath) == "" {
		f.FFmpegPath = defaultFFmpegPath
	}
	if strings.TrimSpace(f.FFprobePath) == "" {
		f.FFprobePath = defaultFFprobePath
	}
}

func (c *Config) normalizeStore() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = defaultStorePath
	}
	var err error
	if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Server.AllowedOrigins = origins
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
