package chroma

import (
	"context"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

// Bins is the number of pitch classes in a chroma vector.
const Bins = 12

// Config describes the STFT chroma front-end.
type Config struct {
	SampleRate      int     `json:"sample_rate"`
	WindowSize      int     `json:"window_size"`
	HopSize         int     `json:"hop_size"`
	TuningFrequency float64 `json:"tuning_frequency"` // A4
	MinFrequency    float64 `json:"min_frequency"`
	MaxFrequency    float64 `json:"max_frequency"`
	Window          string  `json:"window"` // "hann" or "hamming"
}

// DefaultConfig matches a 2048-sample hop at 44.1kHz with A4=440Hz.
func DefaultConfig() Config {
	return Config{
		SampleRate:      44100,
		WindowSize:      4096,
		HopSize:         2048,
		TuningFrequency: 440.0,
		MinFrequency:    80.0, // about E2
		MaxFrequency:    5000.0,
		Window:          windowing.HannWindow,
	}
}

// Validate checks the front-end parameters.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.SampleRate)
	}
	if c.WindowSize <= 0 || c.HopSize <= 0 {
		return fmt.Errorf("window size (%d) and hop size (%d) must be positive", c.WindowSize, c.HopSize)
	}
	if c.TuningFrequency <= 0 {
		return fmt.Errorf("tuning frequency must be positive: %.2f", c.TuningFrequency)
	}
	if c.MinFrequency < 0 || c.MaxFrequency <= c.MinFrequency {
		return fmt.Errorf("frequency range [%.1f, %.1f] is empty", c.MinFrequency, c.MaxFrequency)
	}
	if c.MaxFrequency > float64(c.SampleRate)/2 {
		return fmt.Errorf("max frequency %.1f exceeds Nyquist %.1f", c.MaxFrequency, float64(c.SampleRate)/2)
	}
	return nil
}

// FrameDuration is the hop expressed in seconds.
func (c Config) FrameDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}

// WindowCenter is the offset in seconds from a frame's first sample to the
// middle of its analysis window.
func (c Config) WindowCenter() float64 {
	return float64(c.WindowSize) / 2 / float64(c.SampleRate)
}

// ChromaSTFT folds an STFT power spectrum into 12 pitch classes.
//
// Frequencies outside [MinFrequency, MaxFrequency] are ignored, every other
// FFT bin goes to the nearest equal-tempered semitone (C=0) and each frame is
// normalized to unit sum. Frames without energy in range stay all-zero.
type ChromaSTFT struct {
	config Config
	stft   *spectral.STFT
	window *windowing.Window
}

// NewChromaSTFT creates a front-end for config.
func NewChromaSTFT(config Config) (*ChromaSTFT, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	window, err := windowing.ByName(config.Window, config.WindowSize)
	if err != nil {
		return nil, err
	}
	return &ChromaSTFT{
		config: config,
		stft:   spectral.NewSTFT(),
		window: window,
	}, nil
}

// Config returns the front-end configuration.
func (cs *ChromaSTFT) Config() Config {
	return cs.config
}

// Compute returns one 12-bin vector per hop. Signals shorter than one window
// are zero-padded to a single frame.
func (cs *ChromaSTFT) Compute(ctx context.Context, signal []float64) ([][]float64, error) {
	if len(signal) == 0 {
		return [][]float64{}, nil
	}
	if len(signal) < cs.config.WindowSize {
		padded := make([]float64, cs.config.WindowSize)
		copy(padded, signal)
		signal = padded
	}

	result, err := cs.stft.Compute(ctx, signal, cs.config.WindowSize, cs.config.HopSize, cs.config.SampleRate, cs.window)
	if err != nil {
		return nil, err
	}

	mapping := cs.binMapping(result.FreqBins, result.FreqResolution)
	chromagram := make([][]float64, result.TimeFrames)
	for t, spectrum := range result.Magnitude {
		frame := make([]float64, Bins)
		for f, magnitude := range spectrum {
			if bin := mapping[f]; bin >= 0 {
				frame[bin] += magnitude * magnitude
			}
		}
		if common.Sum(frame) > 1e-10 {
			frame = common.L1Normalize(frame)
		} else {
			frame = make([]float64, Bins)
		}
		chromagram[t] = frame
	}
	return chromagram, nil
}

// binMapping assigns each FFT bin a pitch class, or -1 when out of range.
func (cs *ChromaSTFT) binMapping(freqBins int, freqResolution float64) []int {
	mapping := make([]int, freqBins)
	for f := range freqBins {
		frequency := float64(f) * freqResolution
		if frequency < cs.config.MinFrequency || frequency > cs.config.MaxFrequency || frequency <= 0 {
			mapping[f] = -1
			continue
		}
		midi := 69.0 + 12.0*math.Log2(frequency/cs.config.TuningFrequency)
		mapping[f] = ((int(math.Round(midi)) % Bins) + Bins) % Bins
	}
	return mapping
}
