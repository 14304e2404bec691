package models

import "time"

const (
	DefaultStreakThresholdMinutes = 15
	DefaultWorkMinutes            = 25
	DefaultBreakMinutes           = 5
)

// Settings holds per-user timer and streak preferences.
type Settings struct {
	UserID                 string
	StreakThresholdMinutes int
	AutoStartBreaks        bool
	SoundEnabled           bool
	WorkMinutes            int
	BreakMinutes           int
	UpdatedAt              time.Time
}

// DefaultSettings returns the settings used when a user has none stored.
func DefaultSettings(userID string) *Settings {
	return &Settings{
		UserID:                 userID,
		StreakThresholdMinutes: DefaultStreakThresholdMinutes,
		SoundEnabled:           true,
		WorkMinutes:            DefaultWorkMinutes,
		BreakMinutes:           DefaultBreakMinutes,
	}
}
