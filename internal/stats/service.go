package stats

import (
	"context"
	"fmt"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/streak"
)

// SessionLister lists a user's sessions.
type SessionLister interface {
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
}

// Achievements is the level and badge view of a user.
type Achievements struct {
	Level  Level
	Streak streak.Result
	Badges []BadgeStatus
}

// BadgeStatus pairs a badge with whether it is earned.
type BadgeStatus struct {
	Badge
	Earned bool
}

// Service loads sessions and computes dashboards for one user at a time.
type Service struct {
	sessions SessionLister
	streaks  *streak.Service
	clock    clock.Clock
}

// NewService creates a stats service. A nil clock uses the system clock.
func NewService(sessions SessionLister, streaks *streak.Service, c clock.Clock) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{sessions: sessions, streaks: streaks, clock: c}
}

func (s *Service) list(ctx context.Context, userID string) ([]*models.Session, error) {
	list, err := s.sessions.ListSessions(ctx, models.SessionFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return list, nil
}

// Summary returns the user's summary as of now.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	list, err := s.list(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(list, s.clock.Now()), nil
}

// Heatmap returns the user's heatmap for year. Year 0 means the current year.
func (s *Service) Heatmap(ctx context.Context, userID string, year int) ([]HeatmapDay, error) {
	now := s.clock.Now()
	if year == 0 {
		year = now.Year()
	}
	list, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Heatmap(list, year, now.Location()), nil
}

// Achievements refreshes the streak and evaluates every badge.
func (s *Service) Achievements(ctx context.Context, userID string) (Achievements, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return Achievements{}, err
	}
	res, err := s.streaks.Refresh(ctx, userID)
	if err != nil {
		return Achievements{}, err
	}

	st := BadgeStats{
		TotalMinutes:   sum.TotalMinutes,
		TotalSessions:  sum.TotalSessions,
		CurrentStreak:  res.CurrentStreak,
		LongestStreak:  res.LongestStreak,
		SessionsByHour: sum.SessionsByHour,
	}
	out := Achievements{Level: CalculateLevel(sum.TotalMinutes), Streak: res}
	for _, b := range Badges {
		out.Badges = append(out.Badges, BadgeStatus{Badge: b, Earned: b.Earned(st)})
	}
	return out, nil
}
