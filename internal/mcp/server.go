package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/stats"
	"github.com/joescharf/focus/internal/store"
	"github.com/joescharf/focus/internal/streak"
	"github.com/joescharf/focus/internal/timer"
)

// Server exposes the focus timer, streak and stats as MCP tools.
type Server struct {
	store    store.Store
	sessions *sessions.Manager
	streaks  *streak.Service
	stats    *stats.Service
	timers   *timer.Registry
	clock    clock.Clock
	user     string
}

// NewServer creates the MCP server wrapper. user is the default for tools
// called without one. A nil clock uses the system clock.
func NewServer(s store.Store, timers *timer.Registry, user string, c clock.Clock) *Server {
	if c == nil {
		c = clock.System{}
	}
	streaks := streak.NewService(s, c)
	return &Server{
		store:    s,
		sessions: sessions.NewManager(s),
		streaks:  streaks,
		stats:    stats.NewService(s, streaks, c),
		timers:   timers,
		clock:    c,
		user:     user,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("focus", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.timerStatusTool())
	srv.AddTool(s.timerStartTool())
	srv.AddTool(s.timerPauseTool())
	srv.AddTool(s.timerResumeTool())
	srv.AddTool(s.timerStopTool())
	srv.AddTool(s.streakTool())
	srv.AddTool(s.statsTool())
	srv.AddTool(s.listSessionsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func userOption() mcp.ToolOption {
	return mcp.WithString("user", mcp.Description("User id (defaults to the configured user)"))
}

func (s *Server) userFrom(request mcp.CallToolRequest) string {
	return request.GetString("user", s.user)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Timer tools
// ---------------------------------------------------------------------------

// focus_timer_status
func (s *Server) timerStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_timer_status",
		mcp.WithDescription("Get the current timer: phase (idle/running/paused/completed), mode, elapsed and remaining seconds, and the open session id."),
		userOption(),
	)
	return tool, s.handleTimerStatus
}

func (s *Server) handleTimerStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.timers.Get(s.userFrom(request))
	return jsonResult(api.TimerViewOf(m.Tick()))
}

// focus_timer_start
func (s *Server) timerStartTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_timer_start",
		mcp.WithDescription("Start a work or break timer. Creates a session immediately; fails if a timer is already active."),
		mcp.WithString("mode", mcp.Description("work (default) or break")),
		mcp.WithString("category", mcp.Description("Category id or name")),
		userOption(),
	)
	return tool, s.handleTimerStart
}

func (s *Server) handleTimerStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user := s.userFrom(request)
	mode, err := models.ParseMode(request.GetString("mode", string(models.ModeWork)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := s.sessions.ResolveCategory(ctx, user, request.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := s.timers.Get(user).Start(ctx, mode, category)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start timer: %v", err)), nil
	}
	return jsonResult(api.TimerViewOf(snap))
}

// focus_timer_pause
func (s *Server) timerPauseTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_timer_pause",
		mcp.WithDescription("Pause the running timer. Paused time does not count toward the session."),
		userOption(),
	)
	return tool, s.handleTimerPause
}

func (s *Server) handleTimerPause(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.timers.Get(s.userFrom(request)).Pause()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to pause timer: %v", err)), nil
	}
	return jsonResult(api.TimerViewOf(snap))
}

// focus_timer_resume
func (s *Server) timerResumeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_timer_resume",
		mcp.WithDescription("Resume a paused timer."),
		userOption(),
	)
	return tool, s.handleTimerResume
}

func (s *Server) handleTimerResume(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.timers.Get(s.userFrom(request)).Resume()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resume timer: %v", err)), nil
	}
	return jsonResult(api.TimerViewOf(snap))
}

// focus_timer_stop
func (s *Server) timerStopTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_timer_stop",
		mcp.WithDescription("Stop the timer and record the session with its elapsed duration. Returns the closed session; queued=true means the write will be retried later."),
		userOption(),
	)
	return tool, s.handleTimerStop
}

func (s *Server) handleTimerStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	m := s.timers.Get(s.userFrom(request))
	closed, err := m.Stop(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop timer: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"timer":  api.TimerViewOf(m.Snapshot()),
		"closed": api.ClosedView{
			SessionID: closed.SessionID,
			EndedAt:   closed.EndedAt,
			Duration:  closed.Duration,
			Deleted:   closed.Deleted,
			Queued:    closed.Queued,
		},
	})
}

// ---------------------------------------------------------------------------
// Streak, stats and sessions
// ---------------------------------------------------------------------------

// focus_streak
func (s *Server) streakTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_streak",
		mcp.WithDescription("Get the current and longest streak of consecutive days meeting the focus threshold, and whether today already qualifies."),
		userOption(),
	)
	return tool, s.handleStreak
}

func (s *Server) handleStreak(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user := s.userFrom(request)
	res, err := s.streaks.Refresh(ctx, user)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute streak: %v", err)), nil
	}
	threshold, err := s.store.GetStreakThreshold(ctx, user)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load threshold: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"streak":            api.StreakViewOf(res),
		"threshold_minutes": threshold,
	})
}

// focus_stats
func (s *Server) statsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_stats",
		mcp.WithDescription("Get focus statistics: today/weekly/total work minutes, session counts, last 7 days, per-category minutes, and level."),
		userOption(),
	)
	return tool, s.handleStats
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := s.stats.Summary(ctx, s.userFrom(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute stats: %v", err)), nil
	}
	level := stats.CalculateLevel(sum.TotalMinutes)
	return jsonResult(map[string]any{
		"stats": api.StatsViewOf(sum),
		"level": level.Level,
		"xp":    level.XP,
	})
}

// focus_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_list_sessions",
		mcp.WithDescription("List recorded sessions, newest first."),
		mcp.WithString("mode", mcp.Description("Filter by mode: work or break")),
		mcp.WithNumber("days", mcp.Description("Only sessions started in the last N days")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of sessions (default 20)")),
		userOption(),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := models.SessionFilter{
		UserID: s.userFrom(request),
		Mode:   models.Mode(request.GetString("mode", "")),
		Limit:  request.GetInt("limit", 20),
	}
	if days := request.GetInt("days", 0); days > 0 {
		filter.Since = s.clock.Now().AddDate(0, 0, -days)
	}

	list, err := s.sessions.ListSessions(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	names := map[string]string{}
	if cats, err := s.sessions.ListCategories(ctx, filter.UserID); err == nil {
		for _, c := range cats {
			names[c.ID] = c.Name
		}
	}

	type sessionOut struct {
		api.SessionView
		Category string `json:"category,omitempty"`
	}
	out := make([]sessionOut, len(list))
	for i, sess := range list {
		out[i] = sessionOut{SessionView: api.SessionViewOf(sess)}
		if sess.CategoryID != nil {
			out[i].Category = names[*sess.CategoryID]
		}
	}
	return jsonResult(out)
}
