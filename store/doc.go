// Package store persists chord detection runs in SQLite.
//
// Each run moves through pending, detecting and then completed or failed. The
// detector never writes here itself: callers report status transitions and
// hand over the finished progression, which keeps the core a pure function of
// its frames. Track wraps a detection call with that bookkeeping.
//
// Schema changes bump schemaVersion in schema.go; users delete the database to
// adopt a new schema.
package store
