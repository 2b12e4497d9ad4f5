package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-chords/logging"
)

// ErrToolUnavailable is returned when ffmpeg or ffprobe cannot be executed.
var ErrToolUnavailable = errors.New("decoder tool unavailable")

// AudioData is decoded mono PCM.
type AudioData struct {
	PCM        []float64      `json:"-"`
	SampleRate int            `json:"sample_rate"`
	Duration   time.Duration  `json:"duration"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// Seconds returns the decoded duration in seconds.
func (a *AudioData) Seconds() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.PCM)) / float64(a.SampleRate)
}

// AudioMetadata holds detected audio properties from ffprobe.
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"` // 0 means no limit
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"` // per ffmpeg/ffprobe invocation
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          2 * time.Minute,
	}
}

// Validate checks the configuration without touching the filesystem.
func (c *DecoderConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", c.TargetSampleRate)
	}
	if c.FFmpegPath == "" || c.FFprobePath == "" {
		return fmt.Errorf("ffmpeg and ffprobe paths must be set")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", c.Timeout)
	}
	return nil
}

// Decoder turns audio files into mono float64 PCM with ffmpeg.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder. A nil config uses the defaults.
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}
}

// DecodeFile probes and decodes filename, downmixed to mono at the target sample rate.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{"filename": filename})
	logger.Debug("Starting audio file decode")

	metadata, err := d.Probe(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	args := append([]string{"-i", filename}, d.buildFFmpegArgs()...)
	args = append(args, "pipe:1")

	output, err := d.run(ctx, d.config.FFmpegPath, args)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", filename)
	}

	audio := &AudioData{
		PCM:        samples,
		SampleRate: d.config.TargetSampleRate,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(d.config.TargetSampleRate),
		Metadata:   metadata,
	}
	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_samples":  len(samples),
		"output_duration": audio.Seconds(),
	})
	return audio, nil
}

// Probe runs ffprobe on the first audio stream of filename.
func (d *Decoder) Probe(ctx context.Context, filename string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}
	output, err := d.run(ctx, d.config.FFprobePath, args)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

// CheckAvailability verifies that ffmpeg and ffprobe can be executed.
func (d *Decoder) CheckAvailability(ctx context.Context) error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrToolUnavailable, bin, err)
		}
	}
	return nil
}

func (d *Decoder) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	d.logger.Debug("Running command", logging.Fields{"bin": bin, "args": strings.Join(args, " ")})

	output, err := exec.CommandContext(ctx, bin, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return output, nil
}

// buildFFmpegArgs requests raw little-endian float64 mono at the target rate.
func (d *Decoder) buildFFmpegArgs() []string {
	args := []string{
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error")
}

func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// ffprobe reports these as strings and omits them for some containers.
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// bytesToFloat64 decodes f64le samples, dropping a trailing partial sample.
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)
	for i := range sampleCount {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return samples
}
