package store

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/focus/internal/models"
)

// ErrNotFound is wrapped by lookups and updates that match no row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for focus.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error)
	EndSession(ctx context.Context, id string, endedAt time.Time, durationSeconds int) error
	UpdateSessionCategory(ctx context.Context, id string, categoryID *string) error
	DeleteSession(ctx context.Context, id string) error

	// Categories
	CreateCategory(ctx context.Context, c *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	GetCategoryByName(ctx context.Context, userID, name string) (*models.Category, error)
	ListCategories(ctx context.Context, userID string) ([]*models.Category, error)
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error

	// Settings
	GetSettings(ctx context.Context, userID string) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
	GetStreakThreshold(ctx context.Context, userID string) (int, error)

	// Streaks
	GetStreak(ctx context.Context, userID string) (*models.Streak, error)
	SaveStreak(ctx context.Context, s *models.Streak) error

	// Timer state
	GetTimerState(ctx context.Context, userID string) (*models.TimerState, error)
	SaveTimerState(ctx context.Context, st *models.TimerState) error
	DeleteTimerState(ctx context.Context, userID string) error

	// Pending writes
	Enqueue(ctx context.Context, w *models.PendingWrite) error
	LeasePendingWrites(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.PendingWrite, error)
	MarkPendingDone(ctx context.Context, id string) error
	MarkPendingFailed(ctx context.Context, id string, nextAttempt time.Time, cause string) error
	ListPendingWrites(ctx context.Context) ([]*models.PendingWrite, error)

	// ClearUserData removes every record owned by a user.
	ClearUserData(ctx context.Context, userID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
