package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/framesource"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

//go:embed sample_config.toml
var sampleConfig string

// Detection holds the chord detector settings.
type Detection struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	MinSegmentDuration  float64 `toml:"min_segment_duration"`
	QualitySet          string  `toml:"quality_set"`
	Scoring             string  `toml:"scoring"`
	RootWeight          float64 `toml:"root_weight"`
	KeyMethod           string  `toml:"key_method"`
	TotalDuration       string  `toml:"total_duration"`
}

// Frontend describes how audio is turned into pitch-class frames.
type Frontend struct {
	SampleRate           int     `toml:"sample_rate"`
	HopSize              int     `toml:"hop_size"`
	WindowSize           int     `toml:"window_size"`
	Window               string  `toml:"window"`
	TuningFrequency      float64 `toml:"tuning_frequency"`
	MinFrequency         float64 `toml:"min_frequency"`
	MaxFrequency         float64 `toml:"max_frequency"`
	FFmpegPath           string  `toml:"ffmpeg_path"`
	FFprobePath          string  `toml:"ffprobe_path"`
	DecodeTimeoutSeconds int     `toml:"decode_timeout_seconds"`
	MaxDurationSeconds   float64 `toml:"max_duration_seconds"`
}

// Store locates the run database.
type Store struct {
	Path string `toml:"path"`
}

// Server configures the HTTP API.
type Server struct {
	Bind           string   `toml:"bind"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Logging controls the global logger.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for sonido-chords.
type Config struct {
	Detection Detection `toml:"detection"`
	Frontend  Frontend  `toml:"frontend"`
	Store     Store     `toml:"store"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sonido-chords/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error: the defaults are returned with exists set to false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

// FrameDuration is the analysis hop in seconds.
func (c *Config) FrameDuration() float64 {
	if c.Frontend.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frontend.HopSize) / float64(c.Frontend.SampleRate)
}

// DetectionParams converts the detection and front-end sections into detector parameters.
func (c *Config) DetectionParams() (tonal.ChordDetectionParams, error) {
	qualities, err := tonal.QualitySetByName(c.Detection.QualitySet)
	if err != nil {
		return tonal.ChordDetectionParams{}, fmt.Errorf("detection.quality_set: %w", err)
	}
	return tonal.ChordDetectionParams{
		ConfidenceThreshold: c.Detection.ConfidenceThreshold,
		MinSegmentDuration:  c.Detection.MinSegmentDuration,
		FrameDuration:       c.FrameDuration(),
		Qualities:           qualities,
		RootWeight:          c.Detection.RootWeight,
		Scoring:             c.Detection.Scoring,
		KeyMethod:           c.Detection.KeyMethod,
		TotalDuration:       c.Detection.TotalDuration,
	}, nil
}

// ChromaConfig returns the STFT chroma front-end settings.
func (c *Config) ChromaConfig() chroma.Config {
	return chroma.Config{
		SampleRate:      c.Frontend.SampleRate,
		WindowSize:      c.Frontend.WindowSize,
		HopSize:         c.Frontend.HopSize,
		TuningFrequency: c.Frontend.TuningFrequency,
		MinFrequency:    c.Frontend.MinFrequency,
		MaxFrequency:    c.Frontend.MaxFrequency,
		Window:          c.Frontend.Window,
	}
}

// DecoderConfig returns the ffmpeg decoder settings.
func (c *Config) DecoderConfig() *transcode.DecoderConfig {
	return &transcode.DecoderConfig{
		TargetSampleRate: c.Frontend.SampleRate,
		MaxDuration:      time.Duration(c.Frontend.MaxDurationSeconds * float64(time.Second)),
		FFmpegPath:       c.Frontend.FFmpegPath,
		FFprobePath:      c.Frontend.FFprobePath,
		Timeout:          time.Duration(c.Frontend.DecodeTimeoutSeconds) * time.Second,
	}
}

// FrameSourceOptions returns the options for framesource.Open.
func (c *Config) FrameSourceOptions() framesource.Options {
	return framesource.Options{
		FrameDuration: c.FrameDuration(),
		Chroma:        c.ChromaConfig(),
		Decoder:       c.DecoderConfig(),
	}
}

// LogLevel parses the configured logging level.
func (c *Config) LogLevel() (logging.Level, error) {
	return logging.ParseLevel(c.Logging.Level)
}

// EnsureDirectories creates the directory holding the run database.
func (c *Config) EnsureDirectories() error {
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
