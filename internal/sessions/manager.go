package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/store"
)

// ErrInvalidSession is wrapped by every validation failure.
var ErrInvalidSession = errors.New("invalid session")

// Manager validates session writes before they reach the store. It
// implements timer.Writer for timers running against a local database.
type Manager struct {
	store store.Store
}

// NewManager creates a new sessions manager.
func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSession, fmt.Sprintf(format, args...))
}

// CreateSession opens a session starting at start and returns its id. When
// ctx carries an id from models.WithSessionID and that session already
// exists for the user, its id is returned and nothing is written.
func (m *Manager) CreateSession(ctx context.Context, userID string, categoryID *string, start time.Time, mode models.Mode) (string, error) {
	if userID == "" {
		return "", invalid("user is required")
	}
	if !mode.Valid() {
		return "", invalid("mode %q", mode)
	}
	if start.IsZero() {
		return "", invalid("start time is required")
	}
	if err := m.checkCategory(ctx, userID, categoryID); err != nil {
		return "", err
	}

	id := models.SessionIDFromContext(ctx)
	if id != "" {
		if _, err := ulid.ParseStrict(id); err != nil {
			return "", invalid("session id %q is not a ULID", id)
		}
		existing, err := m.store.GetSession(ctx, id)
		switch {
		case err == nil:
			if existing.UserID != userID {
				return "", invalid("session id %s is already taken", id)
			}
			return existing.ID, nil
		case !errors.Is(err, store.ErrNotFound):
			return "", err
		}
	}

	s := &models.Session{
		ID:         id,
		UserID:     userID,
		CategoryID: categoryID,
		Start:      start,
		Mode:       mode,
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return "", err
	}
	return s.ID, nil
}

// EndSession closes a session. Closing an already closed session overwrites
// its end time and duration.
func (m *Manager) EndSession(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int) error {
	if durationSeconds < 0 {
		return invalid("negative duration %d", durationSeconds)
	}
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	// Stored starts are truncated to milliseconds.
	if endedAt.Before(s.Start.Truncate(time.Millisecond)) {
		return invalid("session %s ends at %s before it starts at %s",
			sessionID, endedAt.Format(time.RFC3339), s.Start.Format(time.RFC3339))
	}
	return m.store.EndSession(ctx, sessionID, endedAt, durationSeconds)
}

// UpdateSessionCategory sets or clears a session's category.
func (m *Manager) UpdateSessionCategory(ctx context.Context, sessionID string, categoryID *string) error {
	s, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.checkCategory(ctx, s.UserID, categoryID); err != nil {
		return err
	}
	return m.store.UpdateSessionCategory(ctx, sessionID, categoryID)
}

// DeleteSession removes a session.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	return m.store.DeleteSession(ctx, sessionID)
}

// GetSession returns one session.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return m.store.GetSession(ctx, sessionID)
}

// ListSessions returns the sessions matching filter, newest first.
func (m *Manager) ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	if filter.Mode != "" && !filter.Mode.Valid() {
		return nil, invalid("mode %q", filter.Mode)
	}
	return m.store.ListSessions(ctx, filter)
}

// ResolveCategory maps a category id or name to its id. An empty ref means
// uncategorized.
func (m *Manager) ResolveCategory(ctx context.Context, userID, ref string) (*string, error) {
	if ref == "" {
		return nil, nil
	}
	if c, err := m.store.GetCategory(ctx, ref); err == nil && c.UserID == userID {
		return &c.ID, nil
	}
	c, err := m.store.GetCategoryByName(ctx, userID, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("unknown category %q", ref)
		}
		return nil, err
	}
	return &c.ID, nil
}

func (m *Manager) checkCategory(ctx context.Context, userID string, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	c, err := m.store.GetCategory(ctx, *categoryID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid("unknown category %s", *categoryID)
	}
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return invalid("category %s belongs to another user", *categoryID)
	}
	return nil
}
