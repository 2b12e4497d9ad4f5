package config

import (
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

const (
	defaultSampleRate           = 44100
	defaultHopSize              = 2048
	defaultWindowSize           = 4096
	defaultTuningFrequency      = 440.0
	defaultMinFrequency         = 80.0
	defaultMaxFrequency         = 5000.0
	defaultFFmpegPath           = "ffmpeg"
	defaultFFprobePath          = "ffprobe"
	defaultDecodeTimeoutSeconds = 120
	defaultStorePath            = "~/.local/share/sonido-chords/runs.db"
	defaultServerBind           = "127.0.0.1:7490"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Detection: Detection{
			ConfidenceThreshold: tonal.DefaultConfidenceThreshold,
			MinSegmentDuration:  tonal.DefaultMinSegmentDuration,
			QualitySet:          tonal.QualitySetMinimal,
			Scoring:             tonal.ScoringDot,
			RootWeight:          1.0,
			KeyMethod:           tonal.KeyMethodDuration,
			TotalDuration:       tonal.TotalDurationLastSegment,
		},
		Frontend: Frontend{
			SampleRate:           defaultSampleRate,
			HopSize:              defaultHopSize,
			WindowSize:           defaultWindowSize,
			Window:               windowing.HannWindow,
			TuningFrequency:      defaultTuningFrequency,
			MinFrequency:         defaultMinFrequency,
			MaxFrequency:         defaultMaxFrequency,
			FFmpegPath:           defaultFFmpegPath,
			FFprobePath:          defaultFFprobePath,
			DecodeTimeoutSeconds: defaultDecodeTimeoutSeconds,
		},
		Store: Store{
			Path: defaultStorePath,
		},
		Server: Server{
			Bind:           defaultServerBind,
			AllowedOrigins: []string{"*"},
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
