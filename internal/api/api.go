package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/stats"
	"github.com/joescharf/focus/internal/store"
	"github.com/joescharf/focus/internal/streak"
	"github.com/joescharf/focus/internal/timer"
)

// UserHeader names the request header carrying the user id.
const UserHeader = "X-Focus-User"

// Config holds server options.
type Config struct {
	// DefaultUser is used when a request names no user.
	DefaultUser string
	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
	Clock          clock.Clock
	// UI, when set, serves every path outside the API.
	UI http.Handler
}

// Server provides the REST API handlers.
type Server struct {
	store    store.Store
	sessions *sessions.Manager
	streaks  *streak.Service
	stats    *stats.Service
	timers   *timer.Registry
	hub      *Hub
	cfg      Config
	log      zerolog.Logger
}

// NewServer creates a new API server. A nil hub gets a private one.
func NewServer(s store.Store, timers *timer.Registry, hub *Hub, cfg Config, log zerolog.Logger) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if hub == nil {
		hub = NewHub()
	}
	streaks := streak.NewService(s, cfg.Clock)
	return &Server{
		store:    s,
		sessions: sessions.NewManager(s),
		streaks:  streaks,
		stats:    stats.NewService(s, streaks, cfg.Clock),
		timers:   timers,
		hub:      hub,
		cfg:      cfg,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.createSession)
		r.Get("/sessions/{id}", s.getSession)
		r.Delete("/sessions/{id}", s.deleteSession)
		r.Post("/sessions/{id}/end", s.endSession)
		r.Put("/sessions/{id}/category", s.updateSessionCategory)

		r.Get("/categories", s.listCategories)
		r.Post("/categories", s.createCategory)
		r.Put("/categories/{id}", s.updateCategory)
		r.Delete("/categories/{id}", s.deleteCategory)

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.updateSettings)
		r.Get("/settings/streak-threshold", s.getStreakThreshold)

		r.Get("/streak", s.getStreak)
		r.Get("/stats", s.getStats)
		r.Get("/stats/heatmap", s.getHeatmap)
		r.Get("/achievements", s.getAchievements)

		r.Get("/timer", s.getTimer)
		r.Post("/timer/start", s.startTimer)
		r.Post("/timer/pause", s.pauseTimer)
		r.Post("/timer/resume", s.resumeTimer)
		r.Post("/timer/stop", s.stopTimer)
		r.Post("/timer/reset", s.resetTimer)
		r.Put("/timer/category", s.setTimerCategory)
		r.Get("/timer/ws", s.timerFeed)
	})

	if s.cfg.UI != nil {
		r.Handle("/*", s.cfg.UI)
	}

	return r
}

type contextKey int

const userIDKey contextKey = iota

// UserFromContext returns the user resolved by the identity middleware.
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			user = r.URL.Query().Get("user")
		}
		if user == "" {
			user = s.cfg.DefaultUser
		}
		if user == "" {
			writeError(w, http.StatusBadRequest, "user is required (set the "+UserHeader+" header)")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, user)))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					w.Header().Set("Access-Control-Allow-Origin", o)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
					break
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// errBadRequest marks request decoding and parameter errors.
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, sessions.ErrInvalidSession),
		errors.Is(err, sessions.ErrInvalidCategory),
		errors.Is(err, streak.ErrInvalidThreshold):
		return http.StatusBadRequest
	case errors.Is(err, timer.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, timer.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
