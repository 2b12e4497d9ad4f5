package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/store"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "data", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// detectCGC runs the default detector over one second each of C, G and C.
func detectCGC(t *testing.T) *tonal.DetectionResult {
	t.Helper()
	params := tonal.DefaultChordDetectionParams()
	params.FrameDuration = 0.1
	detector, err := tonal.NewChordDetectorWithParams(params)
	require.NoError(t, err)

	triads := [][]float64{
		{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0},
		{0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 1},
		{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0},
	}
	var frames []tonal.PitchClassFrame
	for _, energies := range triads {
		for range 10 {
			frames = append(frames, tonal.PitchClassFrame{Timestamp: float64(len(frames)) * 0.1, Energies: energies})
		}
	}
	result, err := detector.DetectFrames(context.Background(), frames)
	require.NoError(t, err)
	return result
}

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := store.Open(ctx, path)
	require.NoError(t, err)
	run, err := s.Create(ctx, "song.mid", "midi", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	fetched, err := reopened.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "song.mid", fetched.Source)
	assert.Equal(t, path, reopened.Path())
	require.NoError(t, reopened.Ping(ctx))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := store.Open(context.Background(), " ")
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	params := tonal.DefaultChordDetectionParams()
	run, err := s.Create(ctx, "frames.json", "json", &params)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, store.StatusPending, run.Status)
	require.NotNil(t, run.Params)
	assert.Equal(t, params, *run.Params)
	assert.Nil(t, run.Progression)
	assert.False(t, run.CreatedAt.IsZero())

	require.NoError(t, s.SetStatus(ctx, run.ID, store.StatusDetecting))

	result := detectCGC(t)
	require.NoError(t, s.Complete(ctx, run.ID, result))

	done, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, done.Status)
	require.NotNil(t, done.Progression)
	assert.Equal(t, result.Progression.Segments(), done.Progression.Segments())
	assert.Equal(t, result.Progression.Key(), done.Progression.Key())
	require.NotNil(t, done.Stats)
	assert.Equal(t, result.Stats, *done.Stats)

	summaries, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "C major", summaries[0].Key)
	assert.Equal(t, 3, summaries[0].ChordCount)
	assert.InDelta(t, 3.0, summaries[0].TotalDuration, 1e-9)
	assert.Equal(t, tonal.OutcomeSegments, summaries[0].Outcome)
}

func TestInvalidTransitions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run, err := s.Create(ctx, "a.csv", "csv", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetStatus(ctx, run.ID, store.StatusPending), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.SetStatus(ctx, run.ID, store.StatusCompleted), store.ErrInvalidTransition)
	assert.Error(t, s.SetStatus(ctx, run.ID, store.Status("paused")))

	require.NoError(t, s.Fail(ctx, run.ID, errors.New("boom"), nil))
	assert.ErrorIs(t, s.SetStatus(ctx, run.ID, store.StatusDetecting), store.ErrInvalidTransition)
	assert.ErrorIs(t, s.Complete(ctx, run.ID, detectCGC(t)), store.ErrInvalidTransition)

	failed, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, failed.Status)
	assert.Equal(t, "boom", failed.ErrorMessage)
}

func TestMissingRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
	assert.ErrorIs(t, s.SetStatus(ctx, "nope", store.StatusDetecting), store.ErrRunNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "nope"), store.ErrRunNotFound)
}

func TestListFiltersAndLimits(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	var ids []string
	for _, source := range []string{"one", "two", "three"} {
		run, err := s.Create(ctx, source, "json", nil)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}
	require.NoError(t, s.Fail(ctx, ids[1], errors.New("bad frame"), nil))

	all, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0].Source, "newest first")

	limited, err := s.List(ctx, store.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	failed, err := s.List(ctx, store.ListOptions{Statuses: []store.Status{store.StatusFailed}})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ids[1], failed[0].ID)
	assert.Equal(t, "bad frame", failed[0].ErrorMessage)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[store.Status]int{store.StatusPending: 2, store.StatusFailed: 1}, stats)

	require.NoError(t, s.Delete(ctx, ids[0]))
	remaining, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestTrackRecordsOutcome(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	t.Run("completed", func(t *testing.T) {
		run, result, err := s.Track(ctx, "song.mid", "midi", nil, func(context.Context) (*tonal.DetectionResult, error) {
			return detectCGC(t), nil
		})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, store.StatusCompleted, run.Status)
		assert.Equal(t, 3, run.Progression.ChordCount())
	})

	t.Run("failed keeps partial result", func(t *testing.T) {
		partial := detectCGC(t)
		run, result, err := s.Track(ctx, "stream", "json", nil, func(context.Context) (*tonal.DetectionResult, error) {
			return partial, context.Canceled
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Same(t, partial, result)
		require.NotNil(t, run)
		assert.Equal(t, store.StatusFailed, run.Status)
		assert.Equal(t, context.Canceled.Error(), run.ErrorMessage)
		require.NotNil(t, run.Progression)
		assert.Equal(t, 3, run.Progression.ChordCount())
	})

	t.Run("failed without result", func(t *testing.T) {
		run, result, err := s.Track(ctx, "bad.json", "json", nil, func(context.Context) (*tonal.DetectionResult, error) {
			return nil, tonal.ErrInvalidFrame
		})
		assert.ErrorIs(t, err, tonal.ErrInvalidFrame)
		assert.Nil(t, result)
		assert.Equal(t, store.StatusFailed, run.Status)
		assert.Nil(t, run.Progression)
	})
}

func TestParseStatus(t *testing.T) {
	status, err := store.ParseStatus("completed")
	require.NoError(t, err)
	assert.True(t, status.IsTerminal())
	assert.False(t, store.StatusDetecting.IsTerminal())

	_, err = store.ParseStatus("done")
	assert.Error(t, err)
}
