// Command sonido-chords detects chord progressions in pitch-class frame dumps,
// MIDI files and audio, keeps a history of runs and serves the detector over
// HTTP.
package main
