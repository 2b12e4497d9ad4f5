package spectral

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func TestFFTMagnitudesPeak(t *testing.T) {
	// 8 cycles in 64 samples lands exactly on bin 8.
	mags := NewFFT().Magnitudes(sine(8, 64, 64))
	require.Len(t, mags, 33)
	assert.Equal(t, 8, argmax(mags))
	assert.InDelta(t, 32, mags[8], 1e-9)
}

func TestFFTEmpty(t *testing.T) {
	assert.Empty(t, NewFFT().Compute(nil))
	assert.Empty(t, NewFFT().Magnitudes(nil))
}

func TestSTFTFrames(t *testing.T) {
	const sampleRate = 8000
	signal := sine(1000, sampleRate, 4096)

	result, err := NewSTFT().Compute(context.Background(), signal, 512, 256, sampleRate, nil)
	require.NoError(t, err)

	assert.Equal(t, 15, result.TimeFrames)
	assert.Equal(t, 257, result.FreqBins)
	assert.InDelta(t, 15.625, result.FreqResolution, 1e-12)
	for _, frame := range result.Magnitude {
		require.Len(t, frame, 257)
		assert.Equal(t, 64, argmax(frame)) // 1000 Hz / 15.625 Hz
	}
}

func TestSTFTRejectsBadInput(t *testing.T) {
	stft := NewSTFT()
	ctx := context.Background()

	_, err := stft.Compute(ctx, nil, 512, 256, 8000, nil)
	assert.Error(t, err)
	_, err = stft.Compute(ctx, make([]float64, 100), 512, 256, 8000, nil)
	assert.Error(t, err)
	_, err = stft.Compute(ctx, make([]float64, 1024), 512, 0, 8000, nil)
	assert.Error(t, err)
}

func TestSTFTCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSTFT().Compute(ctx, make([]float64, 8192), 512, 256, 8000, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
