package streak

import (
	"context"
	"fmt"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
)

// Store is the subset of store.Store the streak service needs.
type Store interface {
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
	GetStreakThreshold(ctx context.Context, userID string) (int, error)
	GetStreak(ctx context.Context, userID string) (*models.Streak, error)
	SaveStreak(ctx context.Context, s *models.Streak) error
}

// Service recomputes and caches a user's streak.
type Service struct {
	store Store
	clock clock.Clock
}

// NewService creates a streak service. A nil clock uses the system clock.
func NewService(s Store, c clock.Clock) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{store: s, clock: c}
}

// Refresh recomputes the streak from the full session history and saves the
// new cache.
func (s *Service) Refresh(ctx context.Context, userID string) (Result, error) {
	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{UserID: userID})
	if err != nil {
		return Result{}, fmt.Errorf("list sessions: %w", err)
	}
	threshold, err := s.store.GetStreakThreshold(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("get streak threshold: %w", err)
	}
	cached, err := s.store.GetStreak(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("get streak: %w", err)
	}

	res := Calculate(sessions, cached.StreakState, threshold, s.clock.Now())

	if res.StreakState != cached.StreakState {
		if err := s.store.SaveStreak(ctx, &models.Streak{UserID: userID, StreakState: res.StreakState}); err != nil {
			return Result{}, fmt.Errorf("save streak: %w", err)
		}
	}
	return res, nil
}

// QualifiedToday reports whether today already meets the user's threshold
// without touching the cache.
func (s *Service) QualifiedToday(ctx context.Context, userID string) (bool, error) {
	now := s.clock.Now()
	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{UserID: userID})
	if err != nil {
		return false, fmt.Errorf("list sessions: %w", err)
	}
	threshold, err := s.store.GetStreakThreshold(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get streak threshold: %w", err)
	}
	return HasQualifiedToday(sessions, threshold, now), nil
}
