package windowing

import (
	"fmt"
	"math"
	"strings"
)

// Window names accepted by ByName.
const (
	HannWindow    = "hann"
	HammingWindow = "hamming"
)

// Window is a precomputed raised-cosine analysis window.
type Window struct {
	name         string
	coefficients []float64
}

// NewHann creates a periodic Hann window, the usual choice for STFT frames.
func NewHann(size int) *Window {
	return newRaisedCosine(HannWindow, size, 0.5, 0.5)
}

// NewHamming creates a periodic Hamming window.
func NewHamming(size int) *Window {
	return newRaisedCosine(HammingWindow, size, 0.54, 0.46)
}

// ByName resolves "hann" (default) or "hamming".
func ByName(name string, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive: %d", size)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HannWindow:
		return NewHann(size), nil
	case HammingWindow:
		return NewHamming(size), nil
	default:
		return nil, fmt.Errorf("unknown window %q (want %q or %q)", name, HannWindow, HammingWindow)
	}
}

func newRaisedCosine(name string, size int, a0, a1 float64) *Window {
	w := &Window{name: name, coefficients: make([]float64, size)}
	for i := range size {
		w.coefficients[i] = a0 - a1*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return w
}

// ApplyInPlace multiplies signal by the window.
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}
	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

// Coefficients returns a copy of the window coefficients.
func (w *Window) Coefficients() []float64 {
	out := make([]float64, len(w.coefficients))
	copy(out, w.coefficients)
	return out
}

// Size returns the window length.
func (w *Window) Size() int {
	return len(w.coefficients)
}

// Name returns "hann" or "hamming".
func (w *Window) Name() string {
	return w.name
}
