package framesource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// FrameDocument is the JSON interchange form of a frame stream. It is also the
// request body of the HTTP API.
type FrameDocument struct {
	FrameDuration float64                 `json:"frame_duration,omitempty"`
	Duration      float64                 `json:"duration,omitempty"` // source media length in seconds
	Frames        []tonal.PitchClassFrame `json:"frames"`
}

// ReadJSON decodes either a FrameDocument or a bare array of frames.
func ReadJSON(r io.Reader) (*FrameDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &FrameDocument{Frames: []tonal.PitchClassFrame{}}, nil
	}

	var doc FrameDocument
	if data[0] == '[' {
		if err := json.Unmarshal(data, &doc.Frames); err != nil {
			return nil, fmt.Errorf("decode frames: %w", err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode frame document: %w", err)
	}

	if doc.FrameDuration < 0 {
		return nil, fmt.Errorf("frame_duration %.5f must not be negative", doc.FrameDuration)
	}
	if doc.Duration < 0 {
		return nil, fmt.Errorf("duration %.3f must not be negative", doc.Duration)
	}
	if doc.Frames == nil {
		doc.Frames = []tonal.PitchClassFrame{}
	}
	return &doc, nil
}

// WriteJSON encodes frames as an indented FrameDocument.
func WriteJSON(w io.Writer, doc *FrameDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
