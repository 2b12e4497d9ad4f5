package transcode

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFFprobeOutput(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"48000",
		"channels":2,"duration":"183.4","bit_rate":"320000","codec_long_name":"MP3 (MPEG audio layer 3)"}]}`)

	meta, err := parseFFprobeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, &AudioMetadata{
		SampleRate: 48000,
		Channels:   2,
		Codec:      "mp3",
		Duration:   183.4,
		Bitrate:    320000,
		Format:     "MP3 (MPEG audio layer 3)",
	}, meta)
}

func TestParseFFprobeOutputErrors(t *testing.T) {
	cases := map[string]string{
		"not json":     `streams`,
		"no streams":   `{"streams":[]}`,
		"video stream": `{"streams":[{"codec_type":"video","channels":2}]}`,
		"no channels":  `{"streams":[{"codec_type":"audio","channels":0}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseFFprobeOutput([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestBytesToFloat64(t *testing.T) {
	want := []float64{0, 0.5, -1, math.Pi}
	data := make([]byte, 0, len(want)*8+3)
	for _, v := range want {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
	}
	data = append(data, 1, 2, 3)

	assert.Equal(t, want, bytesToFloat64(data))
	assert.Empty(t, bytesToFloat64(nil))
}

func TestBuildFFmpegArgs(t *testing.T) {
	config := DefaultDecoderConfig()
	config.TargetSampleRate = 22050
	config.MaxDuration = 90 * time.Second

	args := NewDecoder(config).buildFFmpegArgs()
	assert.Equal(t, []string{"-f", "f64le", "-ac", "1", "-ar", "22050", "-t", "90.00", "-v", "error"}, args)
}

func TestDecoderConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultDecoderConfig().Validate())

	config := DefaultDecoderConfig()
	config.TargetSampleRate = 0
	assert.Error(t, config.Validate())

	config = DefaultDecoderConfig()
	config.FFprobePath = ""
	assert.Error(t, config.Validate())
}

func TestDecodeFileMissingBinary(t *testing.T) {
	config := DefaultDecoderConfig()
	config.FFprobePath = "/nonexistent/ffprobe"
	_, err := NewDecoder(config).DecodeFile(context.Background(), "song.mp3")
	assert.ErrorContains(t, err, "ffprobe failed")
}

func TestAudioDataSeconds(t *testing.T) {
	audio := &AudioData{PCM: make([]float64, 22050), SampleRate: 44100}
	assert.Equal(t, 0.5, audio.Seconds())
	assert.Equal(t, 0.0, (&AudioData{}).Seconds())
}

func TestCheckAvailabilityMissingBinary(t *testing.T) {
	config := DefaultDecoderConfig()
	config.FFmpegPath = "/nonexistent/ffmpeg"
	err := NewDecoder(config).CheckAvailability(context.Background())
	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.ErrorContains(t, err, "/nonexistent/ffmpeg")
}
