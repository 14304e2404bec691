package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
	"github.com/joescharf/focus/internal/timer"
)

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)

func newTestServer(t *testing.T) (*Server, store.Store, *clock.Manual) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	clk := clock.NewManual(t0)
	writer := sessions.NewManager(s)
	timers := timer.NewRegistry(func(userID string) *timer.Machine {
		cfg := timer.DefaultConfig(userID)
		cfg.TickInterval = 0
		return timer.New(cfg, writer, timer.WithClock(clk))
	})
	t.Cleanup(timers.Close)

	return NewServer(s, timers, "alice", clk), s, clk
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// seedSession records a closed work session of minutes starting at start.
func seedSession(t *testing.T, s store.Store, user string, start time.Time, minutes int) *models.Session {
	t.Helper()
	ctx := context.Background()
	sess := &models.Session{UserID: user, Start: start, Mode: models.ModeWork}
	require.NoError(t, s.CreateSession(ctx, sess))
	require.NoError(t, s.EndSession(ctx, sess.ID, start.Add(time.Duration(minutes)*time.Minute), minutes*60))
	return sess
}

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestTimerTools_Lifecycle(t *testing.T) {
	srv, s, clk := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleTimerStatus(ctx, callToolReq("focus_timer_status", nil))
	require.NoError(t, err)
	var view api.TimerView
	resultJSON(t, result, &view)
	assert.Equal(t, "idle", view.Phase)

	result, err = srv.handleTimerStart(ctx, callToolReq("focus_timer_start", map[string]any{"mode": "work"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	resultJSON(t, result, &view)
	assert.Equal(t, "running", view.Phase)
	sessionID := view.SessionID

	clk.Advance(10 * time.Minute)
	result, err = srv.handleTimerPause(ctx, callToolReq("focus_timer_pause", nil))
	require.NoError(t, err)
	resultJSON(t, result, &view)
	assert.Equal(t, "paused", view.Phase)
	assert.Equal(t, 600, view.ElapsedSeconds)

	clk.Advance(time.Hour)
	result, err = srv.handleTimerResume(ctx, callToolReq("focus_timer_resume", nil))
	require.NoError(t, err)
	resultJSON(t, result, &view)
	assert.Equal(t, "running", view.Phase)

	clk.Advance(2 * time.Minute)
	result, err = srv.handleTimerStop(ctx, callToolReq("focus_timer_stop", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var stopped struct {
		Timer  api.TimerView  `json:"timer"`
		Closed api.ClosedView `json:"closed"`
	}
	resultJSON(t, result, &stopped)
	assert.Equal(t, "idle", stopped.Timer.Phase)
	assert.Equal(t, sessionID, stopped.Closed.SessionID)
	assert.Equal(t, 720, stopped.Closed.Duration)

	got, err := s.GetSession(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 720, got.Duration)
}

func TestTimerTools_Errors(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleTimerPause(ctx, callToolReq("focus_timer_pause", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "cannot pause")

	result, err = srv.handleTimerStart(ctx, callToolReq("focus_timer_start", map[string]any{"mode": "nap"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleTimerStart(ctx, callToolReq("focus_timer_start", map[string]any{"category": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown category")
}

func TestTimerTools_PerUser(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleTimerStart(ctx, callToolReq("focus_timer_start", map[string]any{"user": "bob"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = srv.handleTimerStatus(ctx, callToolReq("focus_timer_status", nil))
	require.NoError(t, err)
	var view api.TimerView
	resultJSON(t, result, &view)
	assert.Equal(t, "idle", view.Phase, "alice's timer is untouched")
}

func TestHandleStreak(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	seedSession(t, s, "alice", t0.AddDate(0, 0, -1).Add(-2*time.Hour), 20)
	seedSession(t, s, "alice", t0.Add(-2*time.Hour), 20)

	result, err := srv.handleStreak(ctx, callToolReq("focus_streak", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Streak    api.StreakView `json:"streak"`
		Threshold int            `json:"threshold_minutes"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, 2, out.Streak.CurrentStreak)
	assert.True(t, out.Streak.QualifiedToday)
	assert.Equal(t, 15, out.Threshold)
}

func TestHandleStats(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	seedSession(t, s, "alice", t0.Add(-3*time.Hour), 30)

	result, err := srv.handleStats(ctx, callToolReq("focus_stats", nil))
	require.NoError(t, err)
	var out struct {
		Stats api.StatsView `json:"stats"`
		Level int           `json:"level"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, 30, out.Stats.TodayMinutes)
	assert.Equal(t, 1, out.Stats.TotalSessions)
	assert.Equal(t, 1, out.Level)
}

func TestHandleListSessions(t *testing.T) {
	srv, s, _ := newTestServer(t)
	ctx := context.Background()

	cat := &models.Category{UserID: "alice", Name: "Writing"}
	require.NoError(t, s.CreateCategory(ctx, cat))
	sess := seedSession(t, s, "alice", t0.Add(-time.Hour), 25)
	require.NoError(t, s.UpdateSessionCategory(ctx, sess.ID, &cat.ID))
	seedSession(t, s, "alice", t0.AddDate(0, 0, -10), 25)
	seedSession(t, s, "bob", t0.Add(-time.Hour), 25)

	result, err := srv.handleListSessions(ctx, callToolReq("focus_list_sessions", map[string]any{"days": float64(7)}))
	require.NoError(t, err)
	var out []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Duration int    `json:"duration"`
	}
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, sess.ID, out[0].ID)
	assert.Equal(t, "Writing", out[0].Category)
	assert.Equal(t, 1500, out[0].Duration)

	result, err = srv.handleListSessions(ctx, callToolReq("focus_list_sessions", map[string]any{"limit": float64(10)}))
	require.NoError(t, err)
	resultJSON(t, result, &out)
	assert.Len(t, out, 2)

	result, err = srv.handleListSessions(ctx, callToolReq("focus_list_sessions", map[string]any{"mode": "nap"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
