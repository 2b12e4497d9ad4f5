// Package server exposes chord detection over HTTP.
//
// Routes:
//
//	POST /v1/progressions      detect chords in a JSON frame document
//	GET  /v1/progressions/{id} fetch a stored run
//	GET  /v1/runs              list stored runs (?status=, ?limit=)
//	GET  /healthz              liveness and database check
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/store"
)

const defaultMaxBodyBytes = 32 << 20

// RunStore is the subset of store.Store the server needs.
type RunStore interface {
	Track(ctx context.Context, source, inputFormat string, params *tonal.ChordDetectionParams, detect store.DetectFunc) (*store.Run, *tonal.DetectionResult, error)
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, opts store.ListOptions) ([]store.RunSummary, error)
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Bind           string
	AllowedOrigins []string
	// Params are the detection defaults; requests may override some of them.
	Params       tonal.ChordDetectionParams
	MaxBodyBytes int64
}

// Server serves the HTTP API.
type Server struct {
	bind         string
	params       tonal.ChordDetectionParams
	maxBodyBytes int64
	runs         RunStore
	handler      http.Handler
	logger       logging.Logger
}

// New builds a server over runs.
func New(opts Options, runs RunStore) (*Server, error) {
	if runs == nil {
		return nil, errors.New("server requires a run store")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("detection params: %w", err)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		bind:         opts.Bind,
		params:       opts.Params,
		maxBodyBytes: opts.MaxBodyBytes,
		runs:         runs,
		logger:       logging.WithFields(logging.Fields{"component": "api_server"}),
	}

	router := mux.NewRouter().StrictSlash(true)
	router.Use(s.logRequests)
	router.HandleFunc("/v1/progressions", s.handleDetect).Methods(http.MethodPost)
	router.HandleFunc("/v1/progressions/{id}", s.handleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/v1/runs", s.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)

	return s, nil
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()
	s.logger.Info("API server listening", logging.Fields{"address": listener.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		s.logger.Info("API server stopped")
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Request served", logging.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
