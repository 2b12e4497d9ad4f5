package spectral

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// STFT computes magnitude spectrograms frame by frame on a worker pool.
type STFT struct {
	fft *FFT
}

// STFTResult holds a magnitude spectrogram.
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Hz per bin
	TimeResolution float64     `json:"time_resolution"` // seconds per frame
}

// Window is applied to every frame before the FFT.
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{fft: NewFFT()}
}

// Compute splits signal into windowSize frames every hopSize samples and
// returns their magnitude spectra. Frame t starts at sample t*hopSize.
func (s *STFT) Compute(ctx context.Context, signal []float64, windowSize, hopSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if len(signal) < windowSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1
	magnitude := make([][]float64, numFrames)

	jobs := make(chan int, numFrames)
	errs := make(chan error, 1)

	var wg sync.WaitGroup
	for range s.workerCount(numFrames) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frame := make([]float64, windowSize)
			for frameIdx := range jobs {
				start := frameIdx * hopSize
				copy(frame, signal[start:start+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frame); err != nil {
						select {
						case errs <- err:
						default:
						}
						continue
					}
				}
				magnitude[frameIdx] = s.fft.Magnitudes(frame)[:freqBins]
			}
		}()
	}

	go func() {
		defer close(jobs)
		for frameIdx := range numFrames {
			if ctx.Err() != nil {
				return
			}
			jobs <- frameIdx
		}
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case err := <-errs:
		return nil, fmt.Errorf("apply window: %w", err)
	default:
	}

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// workerCount keeps small jobs from fanning out across every CPU.
func (s *STFT) workerCount(numFrames int) int {
	numCPU := runtime.NumCPU()
	switch {
	case numFrames < 100:
		return max(1, min(numCPU/2, numFrames))
	case numFrames < 1000:
		return min(numCPU, 8)
	default:
		return numCPU
	}
}
