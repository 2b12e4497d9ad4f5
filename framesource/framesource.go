// Package framesource opens pitch-class frame streams from files: JSON and CSV
// dumps of an external front-end, standard MIDI files and audio decoded with
// ffmpeg.
package framesource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

// ErrUnsupportedFormat is returned for inputs whose format cannot be determined or read.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Format names an input encoding.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatMIDI  Format = "midi"
	FormatAudio Format = "audio"
)

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".ogg": true, ".opus": true,
	".m4a": true, ".aac": true, ".aiff": true, ".wma": true, ".webm": true,
}

// ParseFormat accepts the names above, case-insensitively. "" means auto.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatJSON, FormatCSV, FormatMIDI, FormatAudio:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".json":
		return FormatJSON, nil
	case ext == ".csv":
		return FormatCSV, nil
	case ext == ".mid" || ext == ".midi":
		return FormatMIDI, nil
	case audioExtensions[ext]:
		return FormatAudio, nil
	default:
		return "", fmt.Errorf("%w: cannot detect format of %s", ErrUnsupportedFormat, path)
	}
}

// Options configures Open.
type Options struct {
	// FrameDuration is the hop for MIDI rendering and the fallback for
	// JSON/CSV inputs that do not carry their own.
	FrameDuration float64
	Chroma        chroma.Config
	Decoder       *transcode.DecoderConfig
}

// DefaultOptions uses the default chroma front-end and decoder.
func DefaultOptions() Options {
	c := chroma.DefaultConfig()
	return Options{
		FrameDuration: c.FrameDuration(),
		Chroma:        c,
		Decoder:       transcode.DefaultDecoderConfig(),
	}
}

// Input is an opened frame stream.
type Input struct {
	Source        tonal.FrameSource
	Format        Format
	Frames        int
	FrameDuration float64
	// Duration is the length of the underlying media in seconds when known
	// (audio, MIDI, or a JSON document that carries it), otherwise 0.
	Duration float64
}

// Open reads path in the given format (FormatAuto detects it) and returns a
// frame source over its contents.
func Open(ctx context.Context, path string, format Format, opts Options) (*Input, error) {
	if format == "" || format == FormatAuto {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	logger := logging.WithFields(logging.Fields{
		"component": "frame_source",
		"path":      path,
		"format":    string(format),
	})
	logger.Debug("Opening input")

	if format == FormatAudio {
		return openAudio(ctx, path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		frames        []tonal.PitchClassFrame
		frameDuration = opts.FrameDuration
		duration      float64
	)

	switch format {
	case FormatJSON:
		doc, err := ReadJSON(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		frames, duration = doc.Frames, doc.Duration
		if doc.FrameDuration > 0 {
			frameDuration = doc.FrameDuration
		}
	case FormatCSV:
		frames, err = ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	case FormatMIDI:
		rendered, err := ReadMIDI(f, opts.FrameDuration)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		frames, duration = rendered.Frames, rendered.Duration
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	logger.Debug("Input loaded", logging.Fields{"frames": len(frames), "frame_duration": frameDuration})

	return &Input{
		Source:        tonal.NewSliceSource(frames),
		Format:        format,
		Frames:        len(frames),
		FrameDuration: frameDuration,
		Duration:      duration,
	}, nil
}
