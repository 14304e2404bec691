package models

import "time"

// PendingOp names a session write waiting in the outbox.
type PendingOp string

const (
	PendingOpEndSession     PendingOp = "end_session"
	PendingOpUpdateCategory PendingOp = "update_category"
	PendingOpDeleteSession  PendingOp = "delete_session"
)

// PendingWrite is a session write that failed and must be retried.
type PendingWrite struct {
	ID            string
	Op            PendingOp
	SessionID     string
	EndedAt       *time.Time
	Duration      int
	CategoryID    *string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}
