// Package config loads, normalizes, and validates sonido-chords configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files on top of those defaults. The Config type
// converts into the parameter structs used by the detector, the chroma
// front-end, the ffmpeg decoder and the frame-source loader, so the CLI and
// the HTTP server build their pipelines from one validated source.
package config
