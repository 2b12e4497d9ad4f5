package framesource

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// percussion channel (10 in 1-based numbering) carries no pitch
const drumChannel = 9

// MIDIRendering is a MIDI file rendered to pitch-class frames.
type MIDIRendering struct {
	Frames   []tonal.PitchClassFrame
	Notes    int
	Duration float64 // seconds, end of the last note
}

type midiNote struct {
	pitchClass int
	start, end float64
	velocity   float64
}

type noteKey struct {
	channel, key uint8
}

// ReadMIDI renders a standard MIDI file into one frame per frameDuration.
// Each sounding note adds velocity/127 to its pitch class, weighted by the
// fraction of the hop it overlaps.
func ReadMIDI(r io.Reader, frameDuration float64) (rendering *MIDIRendering, err error) {
	if frameDuration <= 0 {
		return nil, fmt.Errorf("frame duration %.5f must be positive", frameDuration)
	}

	// smf can panic on malformed input
	defer func() {
		if p := recover(); p != nil {
			rendering, err = nil, fmt.Errorf("%w: malformed midi file: %v", ErrUnsupportedFormat, p)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse midi: %v", ErrUnsupportedFormat, err)
	}

	notes, err := collectNotes(s)
	if err != nil {
		return nil, err
	}
	return renderNotes(notes, frameDuration), nil
}

func collectNotes(s *smf.SMF) ([]midiNote, error) {
	var notes []midiNote

	for _, track := range s.Tracks {
		open := make(map[noteKey][]midiNote)
		var absTicks int64
		trackEnd := 0.0

		for _, event := range track {
			absTicks += int64(event.Delta)
			at := float64(s.TimeAt(absTicks)) / 1e6
			trackEnd = math.Max(trackEnd, at)

			var channel, key, velocity uint8
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				if channel == drumChannel {
					continue
				}
				k := noteKey{channel: channel, key: key}
				open[k] = append(open[k], midiNote{
					pitchClass: int(key) % tonal.PitchClasses,
					start:      at,
					velocity:   float64(velocity) / 127.0,
				})
			case event.Message.GetNoteOff(&channel, &key, &velocity),
				event.Message.GetNoteOn(&channel, &key, &velocity) && velocity == 0:
				k := noteKey{channel: channel, key: key}
				stack := open[k]
				if len(stack) == 0 {
					continue
				}
				note := stack[0]
				open[k] = stack[1:]
				note.end = at
				if note.end > note.start {
					notes = append(notes, note)
				}
			}
		}

		// notes still held at the end of the track ring until its last event
		for _, stack := range open {
			for _, note := range stack {
				note.end = trackEnd
				if note.end > note.start {
					notes = append(notes, note)
				}
			}
		}
	}

	if len(notes) == 0 && len(s.Tracks) == 0 {
		return nil, errors.New("midi file has no tracks")
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].start != notes[j].start {
			return notes[i].start < notes[j].start
		}
		return notes[i].pitchClass < notes[j].pitchClass
	})
	return notes, nil
}

func renderNotes(notes []midiNote, frameDuration float64) *MIDIRendering {
	duration := 0.0
	for _, n := range notes {
		duration = math.Max(duration, n.end)
	}

	count := int(math.Ceil(duration/frameDuration - 1e-9))
	frames := make([]tonal.PitchClassFrame, count)
	for k := range frames {
		frames[k] = tonal.PitchClassFrame{
			Timestamp: float64(k) * frameDuration,
			Energies:  make([]float64, tonal.PitchClasses),
		}
	}

	for _, n := range notes {
		first := int(n.start / frameDuration)
		for k := first; k < count; k++ {
			hopStart := float64(k) * frameDuration
			if hopStart >= n.end {
				break
			}
			overlap := math.Min(n.end, hopStart+frameDuration) - math.Max(n.start, hopStart)
			if overlap > 0 {
				frames[k].Energies[n.pitchClass] += n.velocity * overlap / frameDuration
			}
		}
	}

	return &MIDIRendering{Frames: frames, Notes: len(notes), Duration: duration}
}
