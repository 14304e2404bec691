package models

import (
	"context"
	"fmt"
	"time"
)

// Mode is the kind of interval a session records.
type Mode string

const (
	ModeWork  Mode = "work"
	ModeBreak Mode = "break"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeWork || m == ModeBreak
}

// ParseMode converts user input to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid mode %q (want work or break)", s)
	}
	return m, nil
}

// Session is a completed or in-progress focus/break interval.
// Duration is in seconds and is only authoritative once EndedAt is set.
type Session struct {
	ID         string
	UserID     string
	CategoryID *string
	Start      time.Time
	EndedAt    *time.Time
	Duration   int
	Mode       Mode
	CreatedAt  time.Time
}

// Open reports whether the session has not been closed yet.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// Minutes returns the recorded duration in whole minutes.
func (s *Session) Minutes() int {
	return s.Duration / 60
}

type sessionIDKey struct{}

// WithSessionID asks a session writer to create the session under id. A
// retried create with the same id returns the session the first attempt made.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the id set by WithSessionID, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// SessionFilter narrows a session listing. Zero values mean "no filter".
type SessionFilter struct {
	UserID     string
	CategoryID string
	Mode       Mode
	Since      time.Time
	Until      time.Time
	Limit      int
}
