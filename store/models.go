package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// Status represents the lifecycle of a detection run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDetecting Status = "detecting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidTransition is returned when a status change is not allowed from the run's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// statuses a run may be in before moving to the key status
var allowedFrom = map[Status][]Status{
	StatusDetecting: {StatusPending},
	StatusCompleted: {StatusPending, StatusDetecting},
	StatusFailed:    {StatusPending, StatusDetecting},
}

// ParseStatus validates a status name.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusPending, StatusDetecting, StatusCompleted, StatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown run status %q", value)
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one persisted detection run.
type Run struct {
	ID           string                      `json:"id"`
	Source       string                      `json:"source"`
	InputFormat  string                      `json:"input_format"`
	Status       Status                      `json:"status"`
	ErrorMessage string                      `json:"error,omitempty"`
	Params       *tonal.ChordDetectionParams `json:"params,omitempty"`
	Progression  *tonal.ChordProgression     `json:"progression,omitempty"`
	Stats        *tonal.RunStats             `json:"stats,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// RunSummary is the listing form of a run, read without decoding the progression.
type RunSummary struct {
	ID                string    `json:"id"`
	Source            string    `json:"source"`
	InputFormat       string    `json:"input_format"`
	Status            Status    `json:"status"`
	ErrorMessage      string    `json:"error,omitempty"`
	Key               string    `json:"key,omitempty"`
	ChordCount        int       `json:"chord_count"`
	TotalDuration     float64   `json:"total_duration"`
	AverageConfidence float64   `json:"average_confidence"`
	Outcome           string    `json:"outcome,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ListOptions filters List. A zero Limit returns every run.
type ListOptions struct {
	Limit    int
	Statuses []Status
}
