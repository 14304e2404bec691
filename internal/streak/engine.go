// Package streak derives the current and longest run of qualifying days from a
// user's session history. The functions here are pure: every clock read comes
// in through the now argument.
//
// A day qualifies when the durations of all sessions that started on it, in
// any mode, add up to at least the threshold. Dates are calendar dates in
// now's location.
package streak

import (
	"errors"
	"sort"
	"time"

	"github.com/joescharf/focus/internal/calendar"
	"github.com/joescharf/focus/internal/models"
)

// DefaultThresholdMinutes applies when a user has not configured a threshold.
const DefaultThresholdMinutes = models.DefaultStreakThresholdMinutes

// ErrInvalidThreshold is returned by boundary validation for thresholds <= 0.
var ErrInvalidThreshold = errors.New("streak threshold must be greater than zero")

// ValidateThreshold rejects thresholds the engine would otherwise clamp.
func ValidateThreshold(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// Result is the updated cache plus whether today already qualifies.
type Result struct {
	models.StreakState
	QualifiedToday bool
}

func normalizeThreshold(minutes int) int {
	if minutes <= 0 {
		return DefaultThresholdMinutes
	}
	return minutes
}

// DailySeconds sums session durations per local start date.
func DailySeconds(sessions []*models.Session, loc *time.Location) map[string]int {
	totals := make(map[string]int)
	for _, s := range sessions {
		if s == nil || s.Duration <= 0 {
			continue
		}
		totals[calendar.Key(s.Start, loc)] += s.Duration
	}
	return totals
}

// QualifyingDates returns the sorted dates whose summed duration meets the threshold.
func QualifyingDates(sessions []*models.Session, thresholdMinutes int, loc *time.Location) []string {
	need := normalizeThreshold(thresholdMinutes) * 60
	var dates []string
	for day, secs := range DailySeconds(sessions, loc) {
		if secs >= need {
			dates = append(dates, day)
		}
	}
	sort.Strings(dates)
	return dates
}

// LongestRun returns the longest run of consecutive days in sorted dates.
func LongestRun(dates []string) int {
	if len(dates) == 0 {
		return 0
	}
	longest, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if diff, err := calendar.DaysBetween(dates[i-1], dates[i]); err == nil && diff == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// runEndingAt counts consecutive qualifying days ending at day, inclusive.
func runEndingAt(qualified map[string]bool, day string) int {
	t, err := calendar.Parse(day, time.UTC)
	if err != nil {
		return 0
	}
	n := 0
	for qualified[t.Format(calendar.Layout)] {
		n++
		t = t.AddDate(0, 0, -1)
	}
	return n
}

// HasQualifiedToday reports whether today's summed session time meets the threshold.
func HasQualifiedToday(sessions []*models.Session, thresholdMinutes int, now time.Time) bool {
	return TodayTotal(sessions, now) >= normalizeThreshold(thresholdMinutes)*60
}

// TodayTotal returns the seconds recorded by sessions that started today.
func TodayTotal(sessions []*models.Session, now time.Time) int {
	return DailySeconds(sessions, now.Location())[calendar.Key(now, now.Location())]
}

// Calculate updates the cached streak state from the session history.
//
// With no cached date it scans all qualifying days. With a cached date it
// only advances by one day, or rescans when at least one day was skipped.
// LastQualifiedDate only ever moves to a date that actually qualified.
func Calculate(sessions []*models.Session, prev models.StreakState, thresholdMinutes int, now time.Time) Result {
	if len(sessions) == 0 {
		return Result{StreakState: models.StreakState{LongestStreak: prev.LongestStreak}}
	}

	loc := now.Location()
	today := calendar.Key(now, loc)

	qualified := make(map[string]bool)
	var dates []string
	for _, d := range QualifyingDates(sessions, thresholdMinutes, loc) {
		// Sessions stamped after today (clock moved back) cannot extend a streak yet.
		if d > today {
			continue
		}
		qualified[d] = true
		dates = append(dates, d)
	}
	qualifiedToday := qualified[today]

	daysSince, cached := daysSinceLast(prev.LastQualifiedDate, today)
	if !cached {
		return coldStart(dates, prev, today, qualifiedToday)
	}

	switch {
	case daysSince == 0:
		return Result{StreakState: prev, QualifiedToday: qualifiedToday}
	case daysSince == 1:
		if !qualifiedToday {
			return Result{StreakState: prev}
		}
		next := prev
		next.CurrentStreak++
		next.LongestStreak = max(prev.LongestStreak, next.CurrentStreak)
		next.LastQualifiedDate = today
		return Result{StreakState: next, QualifiedToday: true}
	default:
		current := runEndingAt(qualified, today)
		next := models.StreakState{
			CurrentStreak:     current,
			LongestStreak:     max(prev.LongestStreak, current),
			LastQualifiedDate: prev.LastQualifiedDate,
		}
		if qualifiedToday {
			next.LastQualifiedDate = today
		}
		return Result{StreakState: next, QualifiedToday: qualifiedToday}
	}
}

// daysSinceLast returns the day gap to a usable cached date. A missing,
// malformed or future date is not usable.
func daysSinceLast(last, today string) (int, bool) {
	if last == "" {
		return 0, false
	}
	days, err := calendar.DaysBetween(last, today)
	if err != nil || days < 0 {
		return 0, false
	}
	return days, true
}

func coldStart(dates []string, prev models.StreakState, today string, qualifiedToday bool) Result {
	if len(dates) == 0 {
		return Result{
			StreakState:    models.StreakState{LongestStreak: prev.LongestStreak},
			QualifiedToday: qualifiedToday,
		}
	}

	last := dates[len(dates)-1]
	current := 0
	// A run that ended before yesterday is already broken.
	if gap, err := calendar.DaysBetween(last, today); err == nil && gap <= 1 {
		qualified := make(map[string]bool, len(dates))
		for _, d := range dates {
			qualified[d] = true
		}
		current = runEndingAt(qualified, last)
	}

	return Result{
		StreakState: models.StreakState{
			CurrentStreak:     current,
			LongestStreak:     max(prev.LongestStreak, LongestRun(dates), current),
			LastQualifiedDate: last,
		},
		QualifiedToday: qualifiedToday,
	}
}
