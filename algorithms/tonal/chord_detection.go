package tonal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-chords/logging"
)

// DefaultFrameDuration is the hop of the default front-end: 2048 samples at 44.1kHz.
const DefaultFrameDuration = 2048.0 / 44100.0

// ErrNonMonotonicFrame is returned when a frame timestamp does not increase.
var ErrNonMonotonicFrame = errors.New("non-monotonic frame timestamp")

// Total duration policies for ChordDetectionParams.TotalDuration.
const (
	TotalDurationLastSegment = "last_segment"
	TotalDurationStream      = "stream"
	TotalDurationMedia       = "media"
)

// ChordDetectionParams contains parameters for chord detection
type ChordDetectionParams struct {
	ConfidenceThreshold float64      `json:"confidence_threshold"` // τ, frames scoring below become N
	MinSegmentDuration  float64      `json:"min_segment_duration"` // seconds
	FrameDuration       float64      `json:"frame_duration"`       // hop size / sample rate
	Qualities           QualityTable `json:"qualities"`
	RootWeight          float64      `json:"root_weight"`    // 1.0 = binary templates
	Scoring             string       `json:"scoring"`        // "dot" or "cosine"
	KeyMethod           string       `json:"key_method"`     // "duration" or "profile"
	TotalDuration       string       `json:"total_duration"` // "last_segment", "stream" or "media"
	// MediaDuration is the length of the source recording in seconds, used by
	// the "media" policy. Zero means unknown and falls back to the stream duration.
	MediaDuration float64 `json:"media_duration,omitempty"`
}

// DefaultChordDetectionParams returns the minimal quality set with τ=0.3 and a 0.5s minimum segment.
func DefaultChordDetectionParams() ChordDetectionParams {
	return ChordDetectionParams{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MinSegmentDuration:  DefaultMinSegmentDuration,
		FrameDuration:       DefaultFrameDuration,
		Qualities:           MinimalQualities(),
		RootWeight:          1.0,
		Scoring:             ScoringDot,
		KeyMethod:           KeyMethodDuration,
		TotalDuration:       TotalDurationLastSegment,
	}
}

// Validate checks ranges and resolves named options.
func (p ChordDetectionParams) Validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.3f must be between 0 and 1", p.ConfidenceThreshold)
	}
	if p.MinSegmentDuration < 0 {
		return fmt.Errorf("min segment duration %.3f must not be negative", p.MinSegmentDuration)
	}
	if p.FrameDuration <= 0 {
		return fmt.Errorf("frame duration %.5f must be positive", p.FrameDuration)
	}
	if err := p.Qualities.Validate(); err != nil {
		return err
	}
	if p.RootWeight < 0 {
		return fmt.Errorf("%w: root weight %.3f is negative", ErrInvalidTemplate, p.RootWeight)
	}
	if _, err := ScoringByName(p.Scoring); err != nil {
		return err
	}
	if _, err := KeyEstimatorByName(p.KeyMethod, p.Qualities); err != nil {
		return err
	}
	switch strings.ToLower(p.TotalDuration) {
	case "", TotalDurationLastSegment, TotalDurationStream, TotalDurationMedia:
	default:
		return fmt.Errorf("unknown total duration policy %q (want %q, %q or %q)",
			p.TotalDuration, TotalDurationLastSegment, TotalDurationStream, TotalDurationMedia)
	}
	if p.MediaDuration < 0 || math.IsNaN(p.MediaDuration) || math.IsInf(p.MediaDuration, 0) {
		return fmt.Errorf("media duration %.3f must be a finite non-negative number", p.MediaDuration)
	}
	return nil
}

// FrameSource yields frames in timestamp order. Next returns io.EOF once the
// stream is exhausted.
type FrameSource interface {
	Next() (PitchClassFrame, error)
}

// SliceSource serves frames from memory.
type SliceSource struct {
	frames []PitchClassFrame
	pos    int
}

// NewSliceSource wraps frames without copying them.
func NewSliceSource(frames []PitchClassFrame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next implements FrameSource.
func (s *SliceSource) Next() (PitchClassFrame, error) {
	if s.pos >= len(s.frames) {
		return PitchClassFrame{}, io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, nil
}

// Run outcomes reported by RunStats.Outcome. None of them is an error.
const (
	OutcomeEmptyInput         = "empty_input"
	OutcomeAllSilence         = "all_silence"
	OutcomeAllBelowThreshold  = "all_below_threshold"
	OutcomeNoSegmentsSurvived = "no_segments_survived"
	OutcomeSegments           = "segments"
)

// RunStats describes how a run's frames were spent.
type RunStats struct {
	Frames               int     `json:"frames"`
	MatchedFrames        int     `json:"matched_frames"` // frames labeled with a chord
	SilentFrames         int     `json:"silent_frames"`
	BelowThresholdFrames int     `json:"below_threshold_frames"`
	CommittedRuns        int     `json:"committed_runs"`
	DiscardedRuns        int     `json:"discarded_runs"`
	DiscardedDuration    float64 `json:"discarded_duration"`
	StreamDuration       float64 `json:"stream_duration"`
}

// Outcome classifies the run so callers can apply their own policy to empty results.
func (s RunStats) Outcome() string {
	switch {
	case s.Frames == 0:
		return OutcomeEmptyInput
	case s.CommittedRuns > 0:
		return OutcomeSegments
	case s.SilentFrames == s.Frames:
		return OutcomeAllSilence
	case s.MatchedFrames == 0:
		return OutcomeAllBelowThreshold
	default:
		return OutcomeNoSegmentsSurvived
	}
}

// DetectionResult is the output of one run.
type DetectionResult struct {
	Progression *ChordProgression `json:"progression"`
	Stats       RunStats          `json:"stats"`
}

// ChordDetector runs the full pipeline: match every frame, fold matches into
// segments, estimate the key and assemble the progression. The template bank
// is shared read-only and all per-run state lives in Detect, so one detector
// serves concurrent runs.
type ChordDetector struct {
	params    ChordDetectionParams
	bank      *TemplateBank
	matcher   *FrameMatcher
	estimator KeyEstimator
	logger    logging.Logger
}

// NewChordDetector creates a new chord detector with default parameters
func NewChordDetector() *ChordDetector {
	cd, err := NewChordDetectorWithParams(DefaultChordDetectionParams())
	if err != nil {
		panic(fmt.Sprintf("default chord detection params are invalid: %v", err))
	}
	return cd
}

// NewChordDetectorWithParams creates a new chord detector with custom parameters
func NewChordDetectorWithParams(params ChordDetectionParams) (*ChordDetector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	bank, err := NewTemplateBank(params.Qualities, TemplateOptions{RootWeight: params.RootWeight})
	if err != nil {
		return nil, err
	}
	score, err := ScoringByName(params.Scoring)
	if err != nil {
		return nil, err
	}
	estimator, err := KeyEstimatorByName(params.KeyMethod, params.Qualities)
	if err != nil {
		return nil, err
	}

	return &ChordDetector{
		params:    params,
		bank:      bank,
		matcher:   NewFrameMatcher(bank, params.ConfidenceThreshold, score),
		estimator: estimator,
		logger:    logging.WithFields(logging.Fields{"component": "chord_detector"}),
	}, nil
}

// Params returns the detector parameters.
func (cd *ChordDetector) Params() ChordDetectionParams {
	return cd.params
}

// Bank returns the shared template bank.
func (cd *ChordDetector) Bank() *TemplateBank {
	return cd.bank
}

// DetectFrames runs the pipeline over an in-memory frame slice.
func (cd *ChordDetector) DetectFrames(ctx context.Context, frames []PitchClassFrame) (*DetectionResult, error) {
	return cd.Detect(ctx, NewSliceSource(frames))
}

// Detect consumes src until io.EOF.
//
// A malformed or out-of-order frame aborts the run and no progression is
// returned. If ctx is done between frames the run is finalized early and the
// partial result is returned together with ctx.Err().
func (cd *ChordDetector) Detect(ctx context.Context, src FrameSource) (*DetectionResult, error) {
	builder := NewSegmentBuilder(cd.params.MinSegmentDuration, cd.params.FrameDuration)
	var stats RunStats
	lastTimestamp := 0.0

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return cd.finish(ctx, builder, stats, lastTimestamp), err
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", index, err)
		}

		if index > 0 && !(frame.Timestamp > lastTimestamp) {
			return nil, fmt.Errorf("%w: frame %d at %.4fs follows %.4fs", ErrNonMonotonicFrame, index, frame.Timestamp, lastTimestamp)
		}

		match, err := cd.matcher.Match(frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", index, err)
		}

		stats.Frames++
		switch {
		case frame.IsSilent():
			stats.SilentFrames++
		case match.Label.IsNoChord():
			stats.BelowThresholdFrames++
		default:
			stats.MatchedFrames++
		}

		lastTimestamp = frame.Timestamp
		builder.Push(match)
	}

	return cd.finish(ctx, builder, stats, lastTimestamp), nil
}

func (cd *ChordDetector) finish(ctx context.Context, builder *SegmentBuilder, stats RunStats, lastTimestamp float64) *DetectionResult {
	segments := builder.Finish()
	segmentStats := builder.Stats()

	stats.CommittedRuns = segmentStats.CommittedRuns
	stats.DiscardedRuns = segmentStats.DiscardedRuns
	stats.DiscardedDuration = segmentStats.DiscardedDuration
	if stats.Frames > 0 {
		stats.StreamDuration = lastTimestamp + cd.params.FrameDuration
	}

	var opts AssembleOptions
	switch strings.ToLower(cd.params.TotalDuration) {
	case TotalDurationStream:
		total := stats.StreamDuration
		opts.TotalDuration = &total
	case TotalDurationMedia:
		total := stats.StreamDuration
		if cd.params.MediaDuration > 0 {
			total = cd.params.MediaDuration
		}
		opts.TotalDuration = &total
	}

	progression := AssembleProgression(segments, cd.estimator.EstimateKey(segments), opts)

	cd.logger.WithContext(ctx).Debug("Chord detection finished", logging.Fields{
		"frames":         stats.Frames,
		"segments":       progression.ChordCount(),
		"discarded_runs": stats.DiscardedRuns,
		"outcome":        stats.Outcome(),
		"key":            progression.Key().String(),
	})

	return &DetectionResult{Progression: progression, Stats: stats}
}
