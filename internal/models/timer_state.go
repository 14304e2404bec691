package models

import "time"

// TimerState is the persisted copy of a user's timer, used to restore the
// machine after a process restart.
type TimerState struct {
	UserID        string
	Phase         string
	Mode          Mode
	CategoryID    *string
	TargetSeconds int
	Anchor        *time.Time
	AccumulatedMs int64
	SessionID     string
	Started       *time.Time
	Notified      bool
	UpdatedAt     time.Time
}
