package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/store"
)

// --- Sessions ---

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SessionFilter{
		UserID:     UserFromContext(r.Context()),
		CategoryID: q.Get("category_id"),
		Mode:       models.Mode(q.Get("mode")),
	}
	var err error
	if filter.Since, err = parseTimeParam(q.Get("since")); err != nil {
		s.fail(w, r, err)
		return
	}
	if filter.Until, err = parseTimeParam(q.Get("until")); err != nil {
		s.fail(w, r, err)
		return
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			s.fail(w, r, badRequest("limit %q", v))
			return
		}
	}

	list, err := s.sessions.ListSessions(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]SessionView, 0, len(list))
	for _, sess := range list {
		out = append(out, SessionViewOf(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	start := s.cfg.Clock.Now()
	if req.Start != nil {
		start = *req.Start
	}
	if req.Mode == "" {
		req.Mode = string(models.ModeWork)
	}

	ctx := r.Context()
	if req.ID != "" {
		ctx = models.WithSessionID(ctx, req.ID)
	}
	id, err := s.sessions.CreateSession(ctx, UserFromContext(ctx), req.CategoryID, start, models.Mode(req.Mode))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionViewOf(sess))
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ownedSession(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionViewOf(sess))
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ownedSession(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req EndSessionRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	endedAt := s.cfg.Clock.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}
	duration := int(endedAt.Sub(sess.Start).Round(time.Second) / time.Second)
	if req.Duration != nil {
		duration = *req.Duration
	}

	if err := s.sessions.EndSession(r.Context(), sess.ID, endedAt, duration); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, r, sess.ID)
}

func (s *Server) updateSessionCategory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ownedSession(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req CategoryRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.UpdateSessionCategory(r.Context(), sess.ID, req.CategoryID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeSession(w, r, sess.ID)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ownedSession(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.sessions.DeleteSession(r.Context(), sess.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionViewOf(sess))
}

// ownedSession loads the {id} session, hiding other users' sessions.
func (s *Server) ownedSession(r *http.Request) (*models.Session, error) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != UserFromContext(r.Context()) {
		return nil, fmt.Errorf("session %w: %s", store.ErrNotFound, id)
	}
	return sess, nil
}

// parseTimeParam accepts RFC 3339 timestamps and local yyyy-mm-dd dates.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, badRequest("time %q (want RFC 3339 or yyyy-mm-dd)", v)
}

// --- Categories ---

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.ListCategories(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]CategoryView, 0, len(list))
	for _, c := range list {
		out = append(out, CategoryViewOf(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryUpsertRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.sessions.CreateCategory(r.Context(), UserFromContext(r.Context()), req.Name, req.Color)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CategoryViewOf(c))
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryUpsertRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.sessions.UpdateCategory(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "id"), req.Name, req.Color)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CategoryViewOf(c))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DeleteCategory(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
