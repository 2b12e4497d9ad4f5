package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/logging"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, filepath.Join(tempHome, ".config", "sonido-chords", "config.toml"), resolved)

	assert.Equal(t, filepath.Join(tempHome, ".local", "share", "sonido-chords", "runs.db"), cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:7490", cfg.Server.Bind)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 0.3, cfg.Detection.ConfidenceThreshold)
	assert.Equal(t, 0.5, cfg.Detection.MinSegmentDuration)
	assert.InDelta(t, 2048.0/44100.0, cfg.FrameDuration(), 1e-12)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.InfoLevel, level)
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	fromSample, _, exists, err := config.Load(writeConfig(t, config.SampleConfig()))
	require.NoError(t, err)
	assert.True(t, exists)

	defaults, _, _, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, defaults, fromSample)
}

func TestLoadOverridesOnTopOfDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
[detection]
confidence_threshold = 0.45
quality_set = " Extended "
key_method = "PROFILE"

[frontend]
sample_rate = 22050
hop_size = 1024
window_size = 2048
max_frequency = 4000.0
decode_timeout_seconds = 30

[store]
path = "~/runs/chords.db"

[logging]
level = "DEBUG"
`)

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, path, resolved)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "runs", "chords.db"), cfg.Store.Path)

	params, err := cfg.DetectionParams()
	require.NoError(t, err)
	assert.Equal(t, 0.45, params.ConfidenceThreshold)
	assert.Equal(t, 0.5, params.MinSegmentDuration, "untouched keys keep their defaults")
	assert.Equal(t, tonal.ExtendedQualities(), params.Qualities)
	assert.Equal(t, tonal.KeyMethodProfile, params.KeyMethod)
	assert.InDelta(t, 1024.0/22050.0, params.FrameDuration, 1e-12)
	require.NoError(t, params.Validate())

	chromaConfig := cfg.ChromaConfig()
	assert.Equal(t, 22050, chromaConfig.SampleRate)
	assert.Equal(t, 4000.0, chromaConfig.MaxFrequency)
	assert.Equal(t, "hann", chromaConfig.Window)

	decoderConfig := cfg.DecoderConfig()
	assert.Equal(t, 22050, decoderConfig.TargetSampleRate)
	assert.Equal(t, 30*time.Second, decoderConfig.Timeout)
	assert.Zero(t, decoderConfig.MaxDuration)

	opts := cfg.FrameSourceOptions()
	assert.Equal(t, params.FrameDuration, opts.FrameDuration)
	assert.Equal(t, chromaConfig, opts.Chroma)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, logging.DebugLevel, level)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"threshold above one", "[detection]\nconfidence_threshold = 1.5\n", "detection.confidence_threshold must be between 0 and 1"},
		{"negative min duration", "[detection]\nmin_segment_duration = -1.0\n", "detection.min_segment_duration"},
		{"unknown quality set", "[detection]\nquality_set = \"jazz\"\n", "detection.quality_set"},
		{"unknown scoring", "[detection]\nscoring = \"hamming\"\n", "unknown scoring function"},
		{"unknown key method", "[detection]\nkey_method = \"vibes\"\n", "unknown key method"},
		{"unknown total duration", "[detection]\ntotal_duration = \"forever\"\n", "unknown total duration policy"},
		{"hop larger than window", "[frontend]\nhop_size = 8192\n", "frontend.hop_size"},
		{"max above nyquist", "[frontend]\nsample_rate = 8000\nmax_frequency = 5000.0\n", "exceeds Nyquist"},
		{"unknown window", "[frontend]\nwindow = \"kaiser\"\n", "frontend.window"},
		{"bad bind", "[server]\nbind = \"localhost\"\n", "server.bind"},
		{"bad log level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"unknown key", "[detection]\nthreshold = 0.2\n", "parse config"},
		{"malformed toml", "[detection\n", "parse config"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := config.Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadRejectsDirectory(t *testing.T) {
	_, _, _, err := config.Load(t.TempDir())
	assert.ErrorContains(t, err, "is a directory")
}

func TestCreateSampleWritesParseableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, toml.Unmarshal(data, &cfg))
	assert.Equal(t, "minimal", cfg.Detection.QualitySet)
	assert.Equal(t, 4096, cfg.Frontend.WindowSize)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "a", "b", "runs.db")
	require.NoError(t, cfg.EnsureDirectories())

	info, err := os.Stat(filepath.Dir(cfg.Store.Path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := config.ExpandPath("~/x/../y")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "y"), got)

	got, err = config.ExpandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}
