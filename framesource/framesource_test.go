package framesource

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func TestReadJSONDocument(t *testing.T) {
	doc, err := ReadJSON(strings.NewReader(`{"frame_duration": 0.1, "frames": [
		{"timestamp": 0, "energies": [1,0,0,0,1,0,0,1,0,0,0,0]},
		{"timestamp": 0.1, "energies": [0,0,0,0,0,0,0,0,0,0,0,0]}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 0.1, doc.FrameDuration)
	require.Len(t, doc.Frames, 2)
	assert.Equal(t, 0.1, doc.Frames[1].Timestamp)
	assert.Equal(t, 1.0, doc.Frames[0].Energies[4])
}

func TestReadJSONBareArray(t *testing.T) {
	doc, err := ReadJSON(strings.NewReader(` [{"timestamp": 2, "energies": [0,0,0,0,0,0,0,0,0,1,0,0]}]`))
	require.NoError(t, err)
	assert.Zero(t, doc.FrameDuration)
	require.Len(t, doc.Frames, 1)
}

func TestReadJSONEdgeCases(t *testing.T) {
	doc, err := ReadJSON(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Frames)

	_, err = ReadJSON(strings.NewReader(`{"frame_duration": -1, "frames": []}`))
	assert.Error(t, err)

	_, err = ReadJSON(strings.NewReader(`{"duration": -2, "frames": []}`))
	assert.Error(t, err)

	_, err = ReadJSON(strings.NewReader(`{"frames": "nope"}`))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	input := `timestamp,C,C#,D,D#,E,F,F#,G,G#,A,A#,B
# exported by the front-end
0,1,0,0,0,1,0,0,1,0,0,0,0
0.5, 0,0,1,0,0,0,0,1,0,0,0,1
`
	frames, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 0.5, frames[1].Timestamp)
	assert.Equal(t, []float64{0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 1}, frames[1].Energies)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("0,1,2,3\n"))
	assert.ErrorIs(t, err, tonal.ErrInvalidFrame)

	_, err = ReadCSV(strings.NewReader("0,1,0,0,0,1,0,0,1,0,0,0,x\n"))
	assert.ErrorContains(t, err, "column 13")
}

func TestWriteCSVIsReadable(t *testing.T) {
	frames := []tonal.PitchClassFrame{
		{Timestamp: 0, Energies: []float64{0.25, 0, 0, 0, 0.25, 0, 0, 0.5, 0, 0, 0, 0}},
		{Timestamp: 0.0464, Energies: make([]float64, 12)},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, frames))
	assert.True(t, strings.HasPrefix(buf.String(), "timestamp,C,C#,D"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, frames, back)
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"frames.json":     FormatJSON,
		"dump.CSV":        FormatCSV,
		"song.mid":        FormatMIDI,
		"song.midi":       FormatMIDI,
		"take.flac":       FormatAudio,
		"/tmp/x/take.mp3": FormatAudio,
	}
	for path, want := range cases {
		got, err := DetectFormat(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectFormat("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatAuto, f)

	f, err = ParseFormat("MIDI")
	require.NoError(t, err)
	assert.Equal(t, FormatMIDI, f)

	_, err = ParseFormat("mp4")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// twoChordSong holds C major for one second, then G major for one second, at 120 bpm.
func twoChordSong(t *testing.T) []byte {
	t.Helper()
	const second = 1920 // ticks at 960 per quarter note, 120 bpm

	var tr smf.Track
	for _, key := range []uint8{60, 64, 67} {
		tr.Add(0, midi.NoteOn(0, key, 100))
	}
	tr.Add(second, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOff(0, 64))
	tr.Add(0, midi.NoteOff(0, 67))
	for _, key := range []uint8{55, 59, 62} {
		tr.Add(0, midi.NoteOn(0, key, 127))
	}
	tr.Add(0, midi.NoteOn(9, 36, 127)) // kick drum, ignored
	tr.Add(second, midi.NoteOff(0, 55))
	tr.Add(0, midi.NoteOn(0, 59, 0))
	tr.Add(0, midi.NoteOff(0, 62))
	tr.Add(0, midi.NoteOff(9, 36))
	tr.Close(0)

	s := smf.New()
	require.NoError(t, s.Add(tr))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadMIDI(t *testing.T) {
	rendering, err := ReadMIDI(bytes.NewReader(twoChordSong(t)), 0.1)
	require.NoError(t, err)

	assert.Equal(t, 6, rendering.Notes)
	assert.InDelta(t, 2.0, rendering.Duration, 1e-9)
	require.Len(t, rendering.Frames, 20)

	first := rendering.Frames[0].Energies
	assert.InDelta(t, 100.0/127.0, first[0], 1e-9)
	assert.InDelta(t, 100.0/127.0, first[4], 1e-9)
	assert.InDelta(t, 100.0/127.0, first[7], 1e-9)
	assert.Zero(t, first[11])

	last := rendering.Frames[19].Energies
	assert.InDelta(t, 1.0, last[7], 1e-9)
	assert.InDelta(t, 1.0, last[11], 1e-9)
	assert.InDelta(t, 1.0, last[2], 1e-9)
	assert.Zero(t, last[0]) // C2 kick on the drum channel
}

func TestReadMIDIRejectsGarbage(t *testing.T) {
	_, err := ReadMIDI(strings.NewReader("definitely not midi"), 0.1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = ReadMIDI(bytes.NewReader(twoChordSong(t)), 0)
	assert.Error(t, err)
}

func TestOpenMIDIDetectsChords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mid")
	require.NoError(t, os.WriteFile(path, twoChordSong(t), 0o644))

	opts := DefaultOptions()
	opts.FrameDuration = 0.05
	input, err := Open(context.Background(), path, FormatAuto, opts)
	require.NoError(t, err)
	assert.Equal(t, FormatMIDI, input.Format)
	assert.Equal(t, 40, input.Frames)
	assert.InDelta(t, 2.0, input.Duration, 1e-9)

	params := tonal.DefaultChordDetectionParams()
	params.FrameDuration = input.FrameDuration
	detector, err := tonal.NewChordDetectorWithParams(params)
	require.NoError(t, err)

	result, err := detector.Detect(context.Background(), input.Source)
	require.NoError(t, err)
	assert.Equal(t, []string{"C -> G"}, result.Progression.Transitions())
}

func TestOpenJSONUsesDocumentFrameDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.json")
	doc := &FrameDocument{
		FrameDuration: 0.25,
		Duration:      4.0,
		Frames: []tonal.PitchClassFrame{
			{Timestamp: 0, Energies: []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, doc))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	input, err := Open(context.Background(), path, FormatAuto, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0.25, input.FrameDuration)
	assert.Equal(t, 4.0, input.Duration)
	assert.Equal(t, 1, input.Frames)

	frame, err := input.Source.Next()
	require.NoError(t, err)
	assert.Equal(t, doc.Frames[0], frame)
}

func TestOpenCSVFallsBackToOptionFrameDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.csv")
	require.NoError(t, os.WriteFile(path, []byte("0,1,0,0,0,1,0,0,1,0,0,0,0\n"), 0o644))

	opts := DefaultOptions()
	input, err := Open(context.Background(), path, FormatCSV, opts)
	require.NoError(t, err)
	assert.Equal(t, opts.FrameDuration, input.FrameDuration)
	assert.Zero(t, input.Duration)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing.json"), FormatAuto, DefaultOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestChromaFrames(t *testing.T) {
	frames := ChromaFrames([][]float64{make([]float64, 12), make([]float64, 12)}, 0.5, 0)
	require.Len(t, frames, 2)
	assert.Equal(t, 0.5, frames[1].Timestamp)

	// default front-end: 4096-sample window at 44.1kHz is centred ~46ms in
	offset := DefaultOptions().Chroma.WindowCenter()
	assert.InDelta(t, 2048.0/44100.0, offset, 1e-15)
	centred := ChromaFrames([][]float64{make([]float64, 12), make([]float64, 12)}, 0.5, offset)
	assert.Equal(t, offset, centred[0].Timestamp)
	assert.InDelta(t, 0.5+offset, centred[1].Timestamp, 1e-15)
}

func TestOpenAudioRequiresDecoderTools(t *testing.T) {
	opts := DefaultOptions()
	decoder := *opts.Decoder
	decoder.FFmpegPath = "/nonexistent/ffmpeg"
	opts.Decoder = &decoder

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "take.flac"), FormatAuto, opts)
	assert.ErrorIs(t, err, transcode.ErrToolUnavailable)
}

func TestReadMIDIHeldNoteEndsWithItsTrack(t *testing.T) {
	const second = 1920

	var long smf.Track
	long.Add(0, midi.NoteOn(0, 67, 127))
	long.Add(2*second, midi.NoteOff(0, 67))
	long.Close(0)

	// C is never released; its track ends after one second
	var short smf.Track
	short.Add(0, midi.NoteOn(1, 60, 127))
	short.Close(second)

	s := smf.New()
	require.NoError(t, s.Add(long))
	require.NoError(t, s.Add(short))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	rendering, err := ReadMIDI(&buf, 0.1)
	require.NoError(t, err)
	require.Len(t, rendering.Frames, 20)
	assert.InDelta(t, 1.0, rendering.Frames[9].Energies[0], 1e-9)
	assert.Zero(t, rendering.Frames[10].Energies[0])
	assert.InDelta(t, 1.0, rendering.Frames[19].Energies[7], 1e-9)
}
