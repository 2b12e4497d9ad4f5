package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// StatusSink receives run lifecycle transitions.
type StatusSink interface {
	SetStatus(ctx context.Context, id string, status Status) error
}

// ProgressionSink receives the outcome of a run.
type ProgressionSink interface {
	Complete(ctx context.Context, id string, result *tonal.DetectionResult) error
	Fail(ctx context.Context, id string, cause error, partial *tonal.DetectionResult) error
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

var (
	_ StatusSink      = (*Store)(nil)
	_ ProgressionSink = (*Store)(nil)
)

// Open initializes or connects to the run database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: logging.WithFields(logging.Fields{"component": "store", "path": path}),
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store.logger.Debug("Run store opened")
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a pending run for source and returns it.
func (s *Store) Create(ctx context.Context, source, inputFormat string, params *tonal.ChordDetectionParams) (*Run, error) {
	var paramsJSON any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		paramsJSON = string(data)
	}

	id := uuid.NewString()
	timestamp := now()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO runs (id, source, input_format, status, params_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		source,
		inputFormat,
		StatusPending,
		paramsJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	s.logger.Debug("Run created", logging.Fields{"run_id": id, "source": source})
	return s.Get(ctx, id)
}

// SetStatus moves a run to status. Terminal statuses are reached through
// Complete and Fail, which also record the result.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	if status.IsTerminal() {
		return fmt.Errorf("%w: use Complete or Fail to finish run %s", ErrInvalidTransition, id)
	}
	return s.transition(ctx, id, status, "", nil)
}

// Complete stores the result of a finished run.
func (s *Store) Complete(ctx context.Context, id string, result *tonal.DetectionResult) error {
	if result == nil || result.Progression == nil {
		return errors.New("complete run: result has no progression")
	}
	return s.transition(ctx, id, StatusCompleted, "", result)
}

// Fail marks a run failed. A partial result, such as the one returned on
// cancellation, is kept alongside the error.
func (s *Store) Fail(ctx context.Context, id string, cause error, partial *tonal.DetectionResult) error {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	return s.transition(ctx, id, StatusFailed, message, partial)
}

func (s *Store) transition(ctx context.Context, id string, status Status, message string, result *tonal.DetectionResult) error {
	from := allowedFrom[status]
	if len(from) == 0 {
		return fmt.Errorf("%w: cannot move a run to %s", ErrInvalidTransition, status)
	}

	sets := []string{"status = ?", "error_message = ?", "updated_at = ?"}
	args := []any{status, nullableString(message), now()}

	if result != nil && result.Progression != nil {
		progressionJSON, err := json.Marshal(result.Progression)
		if err != nil {
			return fmt.Errorf("marshal progression: %w", err)
		}
		statsJSON, err := json.Marshal(result.Stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		p := result.Progression
		sets = append(sets,
			"progression_json = ?", "stats_json = ?", "key_name = ?", "chord_count = ?",
			"total_duration = ?", "average_confidence = ?", "outcome = ?")
		args = append(args,
			string(progressionJSON), string(statsJSON), p.Key().String(), p.ChordCount(),
			p.TotalDuration(), p.AverageConfidence(), result.Stats.Outcome())
	}

	query := `UPDATE runs SET ` + strings.Join(sets, ", ") +
		` WHERE id = ? AND status IN (` + makePlaceholders(len(from)) + `)`
	args = append(args, id)
	for _, st := range from {
		args = append(args, st)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.currentStatus(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: run %s is %s, cannot move to %s", ErrInvalidTransition, id, current, status)
	}

	s.logger.Debug("Run status updated", logging.Fields{"run_id": id, "status": string(status)})
	return nil
}

func (s *Store) currentStatus(ctx context.Context, id string) (Status, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("get run status: %w", err)
	}
	return Status(status), nil
}

// Get fetches a run with its progression.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns run summaries, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM runs`
	args := make([]any, 0, len(opts.Statuses)+1)
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, rows.Err()
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Stats counts runs per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// DetectFunc runs one detection.
type DetectFunc func(ctx context.Context) (*tonal.DetectionResult, error)

// Track records a run around detect: pending, then detecting, then completed
// or failed. The run is returned even when detection fails; bookkeeping
// errors are returned instead of the detection error only when no run could
// be created.
func (s *Store) Track(ctx context.Context, source, inputFormat string, params *tonal.ChordDetectionParams, detect DetectFunc) (*Run, *tonal.DetectionResult, error) {
	run, err := s.Create(ctx, source, inputFormat, params)
	if err != nil {
		return nil, nil, err
	}
	if err := s.SetStatus(ctx, run.ID, StatusDetecting); err != nil {
		return run, nil, err
	}

	result, detectErr := detect(ctx)

	// the run is finalized even when ctx was canceled mid-detection
	bookkeeping := context.WithoutCancel(ctx)
	if detectErr != nil {
		if err := s.Fail(bookkeeping, run.ID, detectErr, result); err != nil {
			s.logger.Error(err, "Failed to record run failure", logging.Fields{"run_id": run.ID})
		}
	} else if err := s.Complete(bookkeeping, run.ID, result); err != nil {
		return run, result, err
	}

	stored, err := s.Get(bookkeeping, run.ID)
	if err != nil {
		return run, result, err
	}
	return stored, result, detectErr
}

const runColumns = "id, source, input_format, status, error_message, params_json, progression_json, stats_json, created_at, updated_at"

const summaryColumns = "id, source, input_format, status, error_message, key_name, chord_count, total_duration, average_confidence, outcome, created_at, updated_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run             Run
		status          string
		errorMessage    sql.NullString
		paramsJSON      sql.NullString
		progressionJSON sql.NullString
		statsJSON       sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Source,
		&run.InputFormat,
		&status,
		&errorMessage,
		&paramsJSON,
		&progressionJSON,
		&statsJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	run.Status = Status(status)
	run.ErrorMessage = errorMessage.String
	if paramsJSON.Valid {
		run.Params = &tonal.ChordDetectionParams{}
		if err := json.Unmarshal([]byte(paramsJSON.String), run.Params); err != nil {
			return nil, fmt.Errorf("decode params of run %s: %w", run.ID, err)
		}
	}
	if progressionJSON.Valid {
		run.Progression = &tonal.ChordProgression{}
		if err := json.Unmarshal([]byte(progressionJSON.String), run.Progression); err != nil {
			return nil, fmt.Errorf("decode progression of run %s: %w", run.ID, err)
		}
	}
	if statsJSON.Valid {
		run.Stats = &tonal.RunStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), run.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of run %s: %w", run.ID, err)
		}
	}
	run.CreatedAt = parseTime(createdRaw)
	run.UpdatedAt = parseTime(updatedRaw)
	return &run, nil
}

func scanSummary(scanner interface{ Scan(dest ...any) error }) (*RunSummary, error) {
	var (
		summary      RunSummary
		status       string
		errorMessage sql.NullString
		keyName      sql.NullString
		outcome      sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&summary.ID,
		&summary.Source,
		&summary.InputFormat,
		&status,
		&errorMessage,
		&keyName,
		&summary.ChordCount,
		&summary.TotalDuration,
		&summary.AverageConfidence,
		&outcome,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	summary.Status = Status(status)
	summary.ErrorMessage = errorMessage.String
	summary.Key = keyName.String
	summary.Outcome = outcome.String
	summary.CreatedAt = parseTime(createdRaw)
	summary.UpdatedAt = parseTime(updatedRaw)
	return &summary, nil
}

// fixed-width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
