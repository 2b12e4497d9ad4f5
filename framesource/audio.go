package framesource

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

// ChromaFrames stamps a chromagram with hop timestamps. Frame i is placed at
// offset + i*frameDuration; pass the window center as offset so each frame is
// stamped where its energy is centred.
func ChromaFrames(chromagram [][]float64, frameDuration, offset float64) []tonal.PitchClassFrame {
	frames := make([]tonal.PitchClassFrame, len(chromagram))
	for i, energies := range chromagram {
		frames[i] = tonal.PitchClassFrame{Timestamp: offset + float64(i)*frameDuration, Energies: energies}
	}
	return frames
}

func openAudio(ctx context.Context, path string, opts Options) (*Input, error) {
	decoderConfig := opts.Decoder
	if decoderConfig == nil {
		decoderConfig = transcode.DefaultDecoderConfig()
	}
	// decode straight to the analysis rate
	cfg := *decoderConfig
	cfg.TargetSampleRate = opts.Chroma.SampleRate

	front, err := chroma.NewChromaSTFT(opts.Chroma)
	if err != nil {
		return nil, fmt.Errorf("chroma front-end: %w", err)
	}

	decoder := transcode.NewDecoder(&cfg)
	if err := decoder.CheckAvailability(ctx); err != nil {
		return nil, err
	}

	audio, err := decoder.DecodeFile(ctx, path)
	if err != nil {
		return nil, err
	}

	chromagram, err := front.Compute(ctx, audio.PCM)
	if err != nil {
		return nil, fmt.Errorf("compute chroma for %s: %w", path, err)
	}

	frameDuration := opts.Chroma.FrameDuration()
	frames := ChromaFrames(chromagram, frameDuration, opts.Chroma.WindowCenter())
	return &Input{
		Source:        tonal.NewSliceSource(frames),
		Format:        FormatAudio,
		Frames:        len(frames),
		FrameDuration: frameDuration,
		Duration:      audio.Seconds(),
	}, nil
}
