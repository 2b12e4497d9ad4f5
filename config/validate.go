package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateFrontend(); err != nil {
		return err
	}
	if c.Store.Path == "" {
		return errors.New("store.path must be set")
	}
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind %q must be host:port: %w", c.Server.Bind, err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.ConfidenceThreshold < 0 || d.ConfidenceThreshold > 1 {
		return errors.New("detection.confidence_threshold must be between 0 and 1")
	}
	if d.MinSegmentDuration < 0 {
		return errors.New("detection.min_segment_duration must not be negative")
	}
	if d.RootWeight < 0 {
		return errors.New("detection.root_weight must not be negative")
	}
	params, err := c.DetectionParams()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	return nil
}

func (c *Config) validateFrontend() error {
	if c.Frontend.HopSize > c.Frontend.WindowSize {
		return errors.New("frontend.hop_size must not exceed frontend.window_size")
	}
	if _, err := windowing.ByName(c.Frontend.Window, c.Frontend.WindowSize); err != nil {
		return fmt.Errorf("frontend.window: %w", err)
	}
	if err := c.ChromaConfig().Validate(); err != nil {
		return fmt.Errorf("frontend: %w", err)
	}
	if c.Frontend.DecodeTimeoutSeconds < 0 {
		return errors.New("frontend.decode_timeout_seconds must not be negative")
	}
	if c.Frontend.MaxDurationSeconds < 0 {
		return errors.New("frontend.max_duration_seconds must not be negative")
	}
	if err := c.DecoderConfig().Validate(); err != nil {
		return fmt.Errorf("frontend: %w", err)
	}
	return nil
}
