package models

import "time"

// StreakState is the cached streak summary carried between recomputations.
// LastQualifiedDate is a local yyyy-mm-dd date, empty when no day has qualified.
type StreakState struct {
	CurrentStreak     int
	LongestStreak     int
	LastQualifiedDate string
}

// Streak is the persisted StreakState for one user.
type Streak struct {
	UserID string
	StreakState
	UpdatedAt time.Time
}
