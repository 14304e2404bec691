package outbox

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
)

// targetWriter fails until failures runs out.
type targetWriter struct {
	failures int
	err      error
	ends     map[string]int
	deletes  []string
	updates  map[string]*string
}

func (t *targetWriter) fail() error {
	if t.failures > 0 {
		t.failures--
		return t.err
	}
	return nil
}

func (t *targetWriter) CreateSession(context.Context, string, *string, time.Time, models.Mode) (string, error) {
	return "", errors.New("not used")
}

func (t *targetWriter) EndSession(_ context.Context, id string, _ time.Time, d int) error {
	if err := t.fail(); err != nil {
		return err
	}
	if t.ends == nil {
		t.ends = make(map[string]int)
	}
	t.ends[id] = d
	return nil
}

func (t *targetWriter) UpdateSessionCategory(_ context.Context, id string, c *string) error {
	if err := t.fail(); err != nil {
		return err
	}
	if t.updates == nil {
		t.updates = make(map[string]*string)
	}
	t.updates[id] = c
	return nil
}

func (t *targetWriter) DeleteSession(_ context.Context, id string) error {
	if err := t.fail(); err != nil {
		return err
	}
	t.deletes = append(t.deletes, id)
	return nil
}

var now0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestWorker(t *testing.T, target *targetWriter) (*Worker, *store.SQLiteStore, *clock.Manual) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	clk := clock.NewManual(now0)
	w := NewWorker(s, target, Config{BaseBackoff: 2 * time.Second, MaxBackoff: time.Minute}, zerolog.Nop()).WithClock(clk)
	return w, s, clk
}

func enqueueEnd(t *testing.T, s *store.SQLiteStore, id string, d int) {
	t.Helper()
	ended := now0.Add(-time.Minute)
	require.NoError(t, s.Enqueue(context.Background(), &models.PendingWrite{
		Op:            models.PendingOpEndSession,
		SessionID:     id,
		EndedAt:       &ended,
		Duration:      d,
		NextAttemptAt: now0,
	}))
}

func TestWorker_AppliesQueuedWrites(t *testing.T) {
	target := &targetWriter{}
	w, s, _ := newTestWorker(t, target)
	ctx := context.Background()

	enqueueEnd(t, s, "s1", 90)
	cat := "c1"
	require.NoError(t, s.Enqueue(ctx, &models.PendingWrite{Op: models.PendingOpUpdateCategory, SessionID: "s2", CategoryID: &cat, NextAttemptAt: now0}))
	require.NoError(t, s.Enqueue(ctx, &models.PendingWrite{Op: models.PendingOpDeleteSession, SessionID: "s3", NextAttemptAt: now0}))

	res, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 3}, res)
	assert.Equal(t, 90, target.ends["s1"])
	assert.Equal(t, "c1", *target.updates["s2"])
	assert.Equal(t, []string{"s3"}, target.deletes)

	pending, err := s.ListPendingWrites(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	target := &targetWriter{failures: 2, err: errors.New("offline")}
	w, s, clk := newTestWorker(t, target)
	ctx := context.Background()
	enqueueEnd(t, s, "s1", 30)

	res, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	// Not due again until the first backoff step has passed.
	clk.Advance(time.Second)
	res, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	clk.Advance(time.Second)
	res, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	pending, err := s.ListPendingWrites(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "offline", pending[0].LastError)

	clk.Advance(4 * time.Second)
	res, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1}, res)
	assert.Equal(t, 30, target.ends["s1"])
}

func TestWorker_DropsPermanentFailures(t *testing.T) {
	target := &targetWriter{failures: 1, err: errors.Join(store.ErrNotFound, errors.New("session gone"))}
	w, s, _ := newTestWorker(t, target)
	ctx := context.Background()
	enqueueEnd(t, s, "gone", 10)
	require.NoError(t, s.Enqueue(ctx, &models.PendingWrite{Op: models.PendingOpEndSession, SessionID: "bad", NextAttemptAt: now0}))

	res, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Dropped)

	pending, err := s.ListPendingWrites(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorker_RetryDelaySchedule(t *testing.T) {
	w := NewWorker(nil, nil, Config{BaseBackoff: time.Second, MaxBackoff: 5 * time.Minute}, zerolog.Nop())

	assert.Equal(t, time.Second, w.retryDelay(0))
	assert.Equal(t, 2*time.Second, w.retryDelay(1))
	assert.Equal(t, 8*time.Second, w.retryDelay(3))
	assert.Equal(t, 5*time.Minute, w.retryDelay(20))
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(store.ErrNotFound))
	assert.True(t, permanent(sessions.ErrInvalidSession))
	assert.False(t, permanent(errors.New("timeout")))
}
