package api

import (
	"net/http"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/timer"
)

func (s *Server) machine(r *http.Request) *timer.Machine {
	return s.timers.Get(UserFromContext(r.Context()))
}

func (s *Server) getTimer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TimerResponse{Timer: TimerViewOf(s.machine(r).Snapshot())})
}

func (s *Server) startTimer(w http.ResponseWriter, r *http.Request) {
	var req StartTimerRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	mode := models.ModeWork
	if req.Mode != "" {
		m, err := models.ParseMode(req.Mode)
		if err != nil {
			s.fail(w, r, badRequest("%v", err))
			return
		}
		mode = m
	}
	category, err := s.sessions.ResolveCategory(r.Context(), UserFromContext(r.Context()), req.Category)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	snap, err := s.machine(r).Start(r.Context(), mode, category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimerResponse{Timer: TimerViewOf(snap)})
}

func (s *Server) pauseTimer(w http.ResponseWriter, r *http.Request) {
	snap, err := s.machine(r).Pause()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimerResponse{Timer: TimerViewOf(snap)})
}

func (s *Server) resumeTimer(w http.ResponseWriter, r *http.Request) {
	snap, err := s.machine(r).Resume()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimerResponse{Timer: TimerViewOf(snap)})
}

func (s *Server) stopTimer(w http.ResponseWriter, r *http.Request) {
	m := s.machine(r)
	closed, err := m.Stop(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimerResponseOf(m.Snapshot(), closed))
}

func (s *Server) resetTimer(w http.ResponseWriter, r *http.Request) {
	snap, closed, err := s.machine(r).Reset(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimerResponseOf(snap, closed))
}

func (s *Server) setTimerCategory(w http.ResponseWriter, r *http.Request) {
	var req TimerCategoryRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	category, err := s.sessions.ResolveCategory(r.Context(), UserFromContext(r.Context()), req.Category)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m := s.machine(r)
	if err := m.SetCategory(r.Context(), category); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TimerResponse{Timer: TimerViewOf(m.Snapshot())})
}
