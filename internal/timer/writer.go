package timer

import (
	"context"
	"time"

	"github.com/joescharf/focus/internal/models"
)

// Writer is the session store collaborator the machine persists through.
type Writer interface {
	CreateSession(ctx context.Context, userID string, categoryID *string, start time.Time, mode models.Mode) (string, error)
	EndSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int) error
	UpdateSessionCategory(ctx context.Context, sessionID string, categoryID *string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Queue durably holds session writes that failed so they can be retried.
type Queue interface {
	Enqueue(ctx context.Context, w *models.PendingWrite) error
}
