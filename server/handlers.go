package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/framesource"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/store"
)

// ProgressionResponse is returned by POST /v1/progressions.
type ProgressionResponse struct {
	RunID       string                  `json:"run_id"`
	Status      store.Status            `json:"status"`
	Progression *tonal.ChordProgression `json:"progression"`
	Nashville   []string                `json:"nashville"`
	Stats       tonal.RunStats          `json:"stats"`
	Outcome     string                  `json:"outcome"`
}

// RunListResponse is returned by GET /v1/runs.
type RunListResponse struct {
	Runs []store.RunSummary `json:"runs"`
}

// ErrorResponse carries a failure message and, when one was recorded, its run.
type ErrorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	params, err := s.requestParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	doc, err := framesource.ReadJSON(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, err.Error(), "")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if doc.FrameDuration > 0 {
		params.FrameDuration = doc.FrameDuration
	}
	params.MediaDuration = doc.Duration

	detector, err := tonal.NewChordDetectorWithParams(params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	source := trimmedQuery(r, "source")
	if source == "" {
		source = "http"
	}

	run, result, err := s.runs.Track(r.Context(), source, string(framesource.FormatJSON), &params, func(ctx context.Context) (*tonal.DetectionResult, error) {
		return detector.DetectFrames(ctx, doc.Frames)
	})
	runID := ""
	if run != nil {
		runID = run.ID
	}
	if err != nil {
		switch {
		case errors.Is(err, tonal.ErrInvalidFrame), errors.Is(err, tonal.ErrNonMonotonicFrame):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error(), runID)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.writeError(w, http.StatusServiceUnavailable, err.Error(), runID)
		default:
			s.logger.Error(err, "Detection request failed", logging.Fields{"run_id": runID})
			s.writeError(w, http.StatusInternalServerError, err.Error(), runID)
		}
		return
	}

	s.writeJSON(w, http.StatusCreated, ProgressionResponse{
		RunID:       runID,
		Status:      run.Status,
		Progression: result.Progression,
		Nashville:   tonal.NashvilleNumbers(result.Progression),
		Stats:       result.Stats,
		Outcome:     result.Stats.Outcome(),
	})
}

// requestParams applies the optional query overrides threshold, min_duration,
// qualities, key_method, scoring and total_duration to the server defaults.
func (s *Server) requestParams(r *http.Request) (tonal.ChordDetectionParams, error) {
	params := s.params
	if value := trimmedQuery(r, "threshold"); value != "" {
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return params, fmt.Errorf("invalid threshold %q", value)
		}
		params.ConfidenceThreshold = threshold
	}
	if value := trimmedQuery(r, "min_duration"); value != "" {
		minDuration, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return params, fmt.Errorf("invalid min_duration %q", value)
		}
		params.MinSegmentDuration = minDuration
	}
	if value := trimmedQuery(r, "qualities"); value != "" {
		qualities, err := tonal.QualitySetByName(value)
		if err != nil {
			return params, err
		}
		params.Qualities = qualities
	}
	if value := trimmedQuery(r, "key_method"); value != "" {
		params.KeyMethod = strings.ToLower(value)
	}
	if value := trimmedQuery(r, "scoring"); value != "" {
		params.Scoring = strings.ToLower(value)
	}
	if value := trimmedQuery(r, "total_duration"); value != "" {
		params.TotalDuration = strings.ToLower(value)
	}
	return params, params.Validate()
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.runs.Get(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found", id)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), id)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var opts store.ListOptions
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, err := store.ParseStatus(trimmed)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	if value := trimmedQuery(r, "limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", value), "")
			return
		}
		opts.Limit = limit
	}

	runs, err := s.runs.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.runs.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error(err, "Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, runID string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, RunID: runID})
}
