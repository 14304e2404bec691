package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

// --- Sessions ---

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)

	sess := &models.Session{UserID: "alice", Start: start, Mode: models.ModeWork}
	require.NoError(t, s.CreateSession(ctx, sess))
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.CreatedAt.IsZero())

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Start.Equal(start))
	assert.True(t, got.Open())
	assert.Nil(t, got.CategoryID)
	assert.Equal(t, models.ModeWork, got.Mode)

	ended := start.Add(20 * time.Minute)
	require.NoError(t, s.EndSession(ctx, sess.ID, ended, 1200))

	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(ended))
	assert.Equal(t, 1200, got.Duration)
	assert.Equal(t, 20, got.Minutes())

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.EndSession(ctx, "missing", time.Now(), 1), ErrNotFound)
	assert.ErrorIs(t, s.UpdateSessionCategory(ctx, "missing", nil), ErrNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, "missing"), ErrNotFound)
}

func TestListSessions_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)

	cat := &models.Category{UserID: "alice", Name: "writing"}
	require.NoError(t, s.CreateCategory(ctx, cat))

	for i, row := range []struct {
		user string
		mode models.Mode
		cat  *string
	}{
		{"alice", models.ModeWork, &cat.ID},
		{"alice", models.ModeBreak, nil},
		{"alice", models.ModeWork, nil},
		{"bob", models.ModeWork, nil},
	} {
		require.NoError(t, s.CreateSession(ctx, &models.Session{
			UserID:     row.user,
			CategoryID: row.cat,
			Start:      base.AddDate(0, 0, i),
			Mode:       row.mode,
			Duration:   600,
		}))
	}

	all, err := s.ListSessions(ctx, models.SessionFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Start.After(all[1].Start), "newest first")

	work, err := s.ListSessions(ctx, models.SessionFilter{UserID: "alice", Mode: models.ModeWork})
	require.NoError(t, err)
	assert.Len(t, work, 2)

	byCat, err := s.ListSessions(ctx, models.SessionFilter{UserID: "alice", CategoryID: cat.ID})
	require.NoError(t, err)
	require.Len(t, byCat, 1)
	assert.Equal(t, cat.ID, *byCat[0].CategoryID)

	window, err := s.ListSessions(ctx, models.SessionFilter{
		UserID: "alice",
		Since:  base.AddDate(0, 0, 1),
		Until:  base.AddDate(0, 0, 2),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, models.ModeBreak, window[0].Mode)

	limited, err := s.ListSessions(ctx, models.SessionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestUpdateSessionCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := &models.Category{UserID: "alice", Name: "study"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	sess := &models.Session{UserID: "alice", Start: time.Now(), Mode: models.ModeWork}
	require.NoError(t, s.CreateSession(ctx, sess))

	require.NoError(t, s.UpdateSessionCategory(ctx, sess.ID, &cat.ID))
	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, cat.ID, *got.CategoryID)

	require.NoError(t, s.UpdateSessionCategory(ctx, sess.ID, nil))
	got, err = s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}

// --- Categories ---

func TestCategoryCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Category{UserID: "alice", Name: "coding", Color: "#ff8800"}
	require.NoError(t, s.CreateCategory(ctx, c))
	assert.NotEmpty(t, c.ID)

	got, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "coding", got.Name)
	assert.Equal(t, "#ff8800", got.Color)

	byName, err := s.GetCategoryByName(ctx, "alice", "coding")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byName.ID)

	_, err = s.GetCategoryByName(ctx, "bob", "coding")
	assert.ErrorIs(t, err, ErrNotFound)

	// Names are unique per user.
	assert.Error(t, s.CreateCategory(ctx, &models.Category{UserID: "alice", Name: "coding"}))
	require.NoError(t, s.CreateCategory(ctx, &models.Category{UserID: "bob", Name: "coding"}))

	c.Name = "deep work"
	require.NoError(t, s.UpdateCategory(ctx, c))

	list, err := s.ListCategories(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "deep work", list[0].Name)

	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	assert.ErrorIs(t, s.DeleteCategory(ctx, c.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateCategory(ctx, c), ErrNotFound)
}

func TestDeleteCategory_UncategorizesSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Category{UserID: "alice", Name: "reading"}
	require.NoError(t, s.CreateCategory(ctx, c))
	sess := &models.Session{UserID: "alice", CategoryID: &c.ID, Start: time.Now(), Mode: models.ModeWork}
	require.NoError(t, s.CreateSession(ctx, sess))

	require.NoError(t, s.DeleteCategory(ctx, c.ID))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
}

// --- Settings & streaks ---

func TestSettings_DefaultsAndSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 15, st.StreakThresholdMinutes)
	assert.Equal(t, 25, st.WorkMinutes)
	assert.True(t, st.SoundEnabled)

	threshold, err := s.GetStreakThreshold(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 15, threshold)

	st.StreakThresholdMinutes = 30
	st.AutoStartBreaks = true
	st.SoundEnabled = false
	require.NoError(t, s.SaveSettings(ctx, st))

	got, err := s.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 30, got.StreakThresholdMinutes)
	assert.True(t, got.AutoStartBreaks)
	assert.False(t, got.SoundEnabled)

	threshold, err = s.GetStreakThreshold(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 30, threshold)
}

func TestStreak_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetStreak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StreakState{}, st.StreakState)

	st.StreakState = models.StreakState{CurrentStreak: 3, LongestStreak: 9, LastQualifiedDate: "2026-10-18"}
	require.NoError(t, s.SaveStreak(ctx, st))

	got, err := s.GetStreak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, st.StreakState, got.StreakState)
}

// --- Timer state ---

func TestTimerState_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetTimerState(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	anchor := time.UnixMilli(time.Now().UnixMilli())
	st := &models.TimerState{
		UserID:        "alice",
		Phase:         "running",
		Mode:          models.ModeBreak,
		CategoryID:    strPtr("cat"),
		TargetSeconds: 300,
		Anchor:        &anchor,
		AccumulatedMs: 12_500,
		SessionID:     "s1",
		Started:       &anchor,
	}
	require.NoError(t, s.SaveTimerState(ctx, st))

	got, err := s.GetTimerState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "running", got.Phase)
	assert.Equal(t, models.ModeBreak, got.Mode)
	assert.Equal(t, "cat", *got.CategoryID)
	require.NotNil(t, got.Anchor)
	assert.True(t, got.Anchor.Equal(anchor))
	assert.Equal(t, int64(12_500), got.AccumulatedMs)
	require.NotNil(t, got.Started)
	assert.True(t, got.Started.Equal(anchor))

	st.Phase = "paused"
	st.Anchor = nil
	require.NoError(t, s.SaveTimerState(ctx, st))
	got, err = s.GetTimerState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "paused", got.Phase)
	assert.Nil(t, got.Anchor)

	require.NoError(t, s.DeleteTimerState(ctx, "alice"))
	_, err = s.GetTimerState(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Pending writes ---

func TestPendingWrites_LeaseAndComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	ended := now.Add(-time.Minute)

	due := &models.PendingWrite{Op: models.PendingOpEndSession, SessionID: "s1", EndedAt: &ended, Duration: 60, NextAttemptAt: now}
	require.NoError(t, s.Enqueue(ctx, due))
	later := &models.PendingWrite{Op: models.PendingOpDeleteSession, SessionID: "s2", NextAttemptAt: now.Add(time.Hour)}
	require.NoError(t, s.Enqueue(ctx, later))

	leased, err := s.LeasePendingWrites(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, due.ID, leased[0].ID)
	assert.Equal(t, 60, leased[0].Duration)
	require.NotNil(t, leased[0].EndedAt)
	assert.Equal(t, ended.UnixMilli(), leased[0].EndedAt.UnixMilli())

	// Leased rows are skipped until the lease expires.
	again, err := s.LeasePendingWrites(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, s.MarkPendingFailed(ctx, due.ID, now.Add(2*time.Second), "still offline"))
	retry, err := s.LeasePendingWrites(ctx, now.Add(3*time.Second), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].Attempts)
	assert.Equal(t, "still offline", retry[0].LastError)

	require.NoError(t, s.MarkPendingDone(ctx, due.ID))
	pending, err := s.ListPendingWrites(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, later.ID, pending[0].ID)

	assert.ErrorIs(t, s.MarkPendingDone(ctx, "missing"), ErrNotFound)
}

func TestClearUserData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Category{UserID: "alice", Name: "x"}
	require.NoError(t, s.CreateCategory(ctx, c))
	a := &models.Session{UserID: "alice", Start: time.Now(), Mode: models.ModeWork}
	require.NoError(t, s.CreateSession(ctx, a))
	b := &models.Session{UserID: "bob", Start: time.Now(), Mode: models.ModeWork}
	require.NoError(t, s.CreateSession(ctx, b))
	require.NoError(t, s.Enqueue(ctx, &models.PendingWrite{Op: models.PendingOpDeleteSession, SessionID: a.ID}))
	require.NoError(t, s.SaveStreak(ctx, &models.Streak{UserID: "alice", StreakState: models.StreakState{CurrentStreak: 2}}))

	require.NoError(t, s.ClearUserData(ctx, "alice"))

	sessions, err := s.ListSessions(ctx, models.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "bob", sessions[0].UserID)

	cats, err := s.ListCategories(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cats)

	pending, err := s.ListPendingWrites(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	st, err := s.GetStreak(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStreak)
}
