package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/joescharf/focus/internal/streak"
	"github.com/joescharf/focus/internal/timer"
)

// --- Settings ---

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetSettings(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsViewOf(st))
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	user := UserFromContext(r.Context())
	st, err := s.store.GetSettings(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if req.StreakThresholdMinutes != nil {
		if err := streak.ValidateThreshold(*req.StreakThresholdMinutes); err != nil {
			s.fail(w, r, err)
			return
		}
		st.StreakThresholdMinutes = *req.StreakThresholdMinutes
	}
	if req.WorkMinutes != nil {
		if *req.WorkMinutes <= 0 {
			s.fail(w, r, badRequest("work_minutes must be positive"))
			return
		}
		st.WorkMinutes = *req.WorkMinutes
	}
	if req.BreakMinutes != nil {
		if *req.BreakMinutes <= 0 {
			s.fail(w, r, badRequest("break_minutes must be positive"))
			return
		}
		st.BreakMinutes = *req.BreakMinutes
	}
	if req.AutoStartBreaks != nil {
		st.AutoStartBreaks = *req.AutoStartBreaks
	}
	if req.SoundEnabled != nil {
		st.SoundEnabled = *req.SoundEnabled
	}

	if err := s.store.SaveSettings(r.Context(), st); err != nil {
		s.fail(w, r, err)
		return
	}

	// A running timer keeps its target; the new durations apply once it is idle.
	if s.timers != nil {
		err := s.timers.Get(user).SetDurations(
			time.Duration(st.WorkMinutes)*time.Minute,
			time.Duration(st.BreakMinutes)*time.Minute,
		)
		if err != nil && !errors.Is(err, timer.ErrInvalidTransition) {
			s.log.Warn().Err(err).Str("user", user).Msg("apply timer durations")
		}
	}
	writeJSON(w, http.StatusOK, SettingsViewOf(st))
}

func (s *Server) getStreakThreshold(w http.ResponseWriter, r *http.Request) {
	minutes, err := s.store.GetStreakThreshold(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"threshold_minutes": minutes})
}

// --- Streak and stats ---

func (s *Server) getStreak(w http.ResponseWriter, r *http.Request) {
	res, err := s.streaks.Refresh(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StreakViewOf(res))
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.stats.Summary(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsViewOf(sum))
}

func (s *Server) getHeatmap(w http.ResponseWriter, r *http.Request) {
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			s.fail(w, r, badRequest("year %q", v))
			return
		}
		year = y
	}
	days, err := s.stats.Heatmap(r.Context(), UserFromContext(r.Context()), year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]HeatmapDayView, 0, len(days))
	for _, d := range days {
		out = append(out, HeatmapDayView{Date: d.Date, Minutes: d.Minutes, Sessions: d.Sessions, Level: d.Level})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAchievements(w http.ResponseWriter, r *http.Request) {
	a, err := s.stats.Achievements(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AchievementsViewOf(a))
}
