package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp. It holds no state and is safe for concurrent use.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute returns the complex spectrum of a real signal. go-dsp handles
// non-power-of-two sizes.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// Magnitudes returns |X[k]| for the non-negative frequencies 0..N/2.
func (f *FFT) Magnitudes(x []float64) []float64 {
	spectrum := f.Compute(x)
	if len(spectrum) == 0 {
		return []float64{}
	}
	bins := len(spectrum)/2 + 1
	out := make([]float64, bins)
	for i := range bins {
		out[i] = cmplx.Abs(spectrum[i])
	}
	return out
}
