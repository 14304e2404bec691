package api

import (
	"time"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/stats"
	"github.com/joescharf/focus/internal/streak"
	"github.com/joescharf/focus/internal/timer"
)

// Wire types shared with internal/client.

type SessionView struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	CategoryID *string    `json:"category_id"`
	Start      time.Time  `json:"start"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Duration   int        `json:"duration"`
	Mode       string     `json:"mode"`
	CreatedAt  time.Time  `json:"created_at"`
}

func SessionViewOf(s *models.Session) SessionView {
	return SessionView{
		ID:         s.ID,
		UserID:     s.UserID,
		CategoryID: s.CategoryID,
		Start:      s.Start,
		EndedAt:    s.EndedAt,
		Duration:   s.Duration,
		Mode:       string(s.Mode),
		CreatedAt:  s.CreatedAt,
	}
}

// Model converts the view back into a session.
func (v SessionView) Model() *models.Session {
	return &models.Session{
		ID:         v.ID,
		UserID:     v.UserID,
		CategoryID: v.CategoryID,
		Start:      v.Start,
		EndedAt:    v.EndedAt,
		Duration:   v.Duration,
		Mode:       models.Mode(v.Mode),
		CreatedAt:  v.CreatedAt,
	}
}

type CategoryView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

func CategoryViewOf(c *models.Category) CategoryView {
	return CategoryView{ID: c.ID, Name: c.Name, Color: c.Color, CreatedAt: c.CreatedAt}
}

type SettingsView struct {
	StreakThresholdMinutes int  `json:"streak_threshold_minutes"`
	AutoStartBreaks        bool `json:"auto_start_breaks"`
	SoundEnabled           bool `json:"sound_enabled"`
	WorkMinutes            int  `json:"work_minutes"`
	BreakMinutes           int  `json:"break_minutes"`
}

func SettingsViewOf(s *models.Settings) SettingsView {
	return SettingsView{
		StreakThresholdMinutes: s.StreakThresholdMinutes,
		AutoStartBreaks:        s.AutoStartBreaks,
		SoundEnabled:           s.SoundEnabled,
		WorkMinutes:            s.WorkMinutes,
		BreakMinutes:           s.BreakMinutes,
	}
}

type StreakView struct {
	CurrentStreak     int    `json:"current_streak"`
	LongestStreak     int    `json:"longest_streak"`
	LastQualifiedDate string `json:"last_qualified_date"`
	QualifiedToday    bool   `json:"qualified_today"`
}

func StreakViewOf(r streak.Result) StreakView {
	return StreakView{
		CurrentStreak:     r.CurrentStreak,
		LongestStreak:     r.LongestStreak,
		LastQualifiedDate: r.LastQualifiedDate,
		QualifiedToday:    r.QualifiedToday,
	}
}

type DayView struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

type StatsView struct {
	TodayMinutes    int            `json:"today_minutes"`
	WeeklyMinutes   int            `json:"weekly_minutes"`
	TotalSessions   int            `json:"total_sessions"`
	TotalMinutes    int            `json:"total_minutes"`
	LongestSession  int            `json:"longest_session"`
	WorkMinutes     int            `json:"work_minutes"`
	BreakMinutes    int            `json:"break_minutes"`
	DailyMinutes    []DayView      `json:"daily_minutes"`
	CategoryMinutes map[string]int `json:"category_minutes"`
	SessionsByHour  map[int]int    `json:"sessions_by_hour"`
}

func StatsViewOf(s stats.Summary) StatsView {
	v := StatsView{
		TodayMinutes:    s.TodayMinutes,
		WeeklyMinutes:   s.WeeklyMinutes,
		TotalSessions:   s.TotalSessions,
		TotalMinutes:    s.TotalMinutes,
		LongestSession:  s.LongestSession,
		WorkMinutes:     s.WorkMinutes,
		BreakMinutes:    s.BreakMinutes,
		CategoryMinutes: s.CategoryMinutes,
		SessionsByHour:  s.SessionsByHour,
	}
	for _, d := range s.DailyMinutes {
		v.DailyMinutes = append(v.DailyMinutes, DayView{Date: d.Date, Minutes: d.Minutes})
	}
	return v
}

type HeatmapDayView struct {
	Date     string `json:"date"`
	Minutes  int    `json:"minutes"`
	Sessions int    `json:"sessions"`
	Level    int    `json:"level"`
}

type BadgeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Earned      bool   `json:"earned"`
}

type AchievementsView struct {
	Level     int         `json:"level"`
	XP        int         `json:"xp"`
	XPForNext int         `json:"xp_for_next"`
	Streak    StreakView  `json:"streak"`
	Badges    []BadgeView `json:"badges"`
}

func AchievementsViewOf(a stats.Achievements) AchievementsView {
	v := AchievementsView{
		Level:     a.Level.Level,
		XP:        a.Level.XP,
		XPForNext: a.Level.XPForNext,
		Streak:    StreakViewOf(a.Streak),
	}
	for _, b := range a.Badges {
		v.Badges = append(v.Badges, BadgeView{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			Earned:      b.Earned,
		})
	}
	return v
}

// TimerView is a timer snapshot as served over HTTP and the websocket feed.
type TimerView struct {
	Phase            string  `json:"phase"`
	Mode             string  `json:"mode"`
	CategoryID       *string `json:"category_id"`
	SessionID        string  `json:"session_id,omitempty"`
	TargetSeconds    int     `json:"target_seconds"`
	ElapsedSeconds   int     `json:"elapsed_seconds"`
	RemainingSeconds int     `json:"remaining_seconds"`
	Progress         float64 `json:"progress"`
	Notified         bool    `json:"notified"`
}

func TimerViewOf(s timer.Snapshot) TimerView {
	return TimerView{
		Phase:            string(s.Phase),
		Mode:             string(s.Mode),
		CategoryID:       s.CategoryID,
		SessionID:        s.SessionID,
		TargetSeconds:    int(s.Target / time.Second),
		ElapsedSeconds:   s.ElapsedSeconds(),
		RemainingSeconds: int(s.Remaining().Round(time.Second) / time.Second),
		Progress:         s.Progress(),
		Notified:         s.Notified,
	}
}

type ClosedView struct {
	SessionID string    `json:"session_id"`
	EndedAt   time.Time `json:"ended_at"`
	Duration  int       `json:"duration"`
	Deleted   bool      `json:"deleted"`
	Queued    bool      `json:"queued"`
}

// TimerResponse answers every timer action.
type TimerResponse struct {
	Timer  TimerView   `json:"timer"`
	Closed *ClosedView `json:"closed,omitempty"`
}

// TimerResponseOf pairs a snapshot with the session an action closed.
func TimerResponseOf(s timer.Snapshot, c timer.Closed) TimerResponse {
	return TimerResponse{Timer: TimerViewOf(s), Closed: closedView(c)}
}

func closedView(c timer.Closed) *ClosedView {
	if c.SessionID == "" {
		return nil
	}
	return &ClosedView{
		SessionID: c.SessionID,
		EndedAt:   c.EndedAt,
		Duration:  c.Duration,
		Deleted:   c.Deleted,
		Queued:    c.Queued,
	}
}

// Requests.

type CreateSessionRequest struct {
	// ID makes the create idempotent: repeating it returns the same session.
	ID         string     `json:"id,omitempty"`
	CategoryID *string    `json:"category_id"`
	Start      *time.Time `json:"start"`
	Mode       string     `json:"mode"`
}

type EndSessionRequest struct {
	EndedAt  *time.Time `json:"ended_at"`
	Duration *int       `json:"duration"`
}

type CategoryRequest struct {
	CategoryID *string `json:"category_id"`
}

type CategoryUpsertRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type SettingsRequest struct {
	StreakThresholdMinutes *int  `json:"streak_threshold_minutes"`
	AutoStartBreaks        *bool `json:"auto_start_breaks"`
	SoundEnabled           *bool `json:"sound_enabled"`
	WorkMinutes            *int  `json:"work_minutes"`
	BreakMinutes           *int  `json:"break_minutes"`
}

type StartTimerRequest struct {
	Mode     string `json:"mode"`
	Category string `json:"category"` // id or name
}

type TimerCategoryRequest struct {
	Category string `json:"category"`
}
