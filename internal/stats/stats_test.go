package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/models"
)

var (
	loc = time.FixedZone("test", 2*60*60)
	now = time.Date(2026, 10, 18, 15, 0, 0, 0, loc)
)

func closed(dayOffset, hour, minutes int, mode models.Mode, cat *string) *models.Session {
	start := time.Date(2026, 10, 18+dayOffset, hour, 0, 0, 0, loc)
	end := start.Add(time.Duration(minutes) * time.Minute)
	return &models.Session{Start: start, EndedAt: &end, Duration: minutes * 60, Mode: mode, CategoryID: cat}
}

func TestSummarize(t *testing.T) {
	coding := "coding"
	sessions := []*models.Session{
		closed(0, 9, 25, models.ModeWork, &coding),
		closed(0, 10, 5, models.ModeBreak, nil),
		closed(-1, 23, 50, models.ModeWork, nil),
		closed(-3, 5, 10, models.ModeWork, &coding),
		closed(-10, 12, 40, models.ModeWork, nil),
	}

	sum := Summarize(sessions, now)
	assert.Equal(t, 25, sum.TodayMinutes)
	assert.Equal(t, 85, sum.WeeklyMinutes)
	assert.Equal(t, 4, sum.TotalSessions)
	assert.Equal(t, 125, sum.TotalMinutes)
	assert.Equal(t, 125, sum.WorkMinutes)
	assert.Equal(t, 5, sum.BreakMinutes)
	assert.Equal(t, 50, sum.LongestSession)
	assert.Equal(t, 35, sum.CategoryMinutes["coding"])
	assert.Equal(t, 1, sum.SessionsByHour[23])
	assert.Equal(t, 1, sum.SessionsByHour[5])

	require.Len(t, sum.DailyMinutes, 7)
	assert.Equal(t, "2026-10-12", sum.DailyMinutes[0].Date)
	assert.Equal(t, DayMinutes{Date: "2026-10-18", Minutes: 25}, sum.DailyMinutes[6])
	assert.Equal(t, 50, sum.DailyMinutes[5].Minutes)
	assert.Equal(t, 10, sum.DailyMinutes[3].Minutes)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil, now)
	assert.Zero(t, sum.TotalMinutes)
	assert.Len(t, sum.DailyMinutes, 7)
}

func TestActivityLevel(t *testing.T) {
	cases := map[int]int{0: 0, 4*60 + 59: 0, 5 * 60: 1, 14 * 60: 1, 15 * 60: 2, 30 * 60: 3, 59 * 60: 3, 60 * 60: 4, 600 * 60: 4}
	for secs, want := range cases {
		assert.Equal(t, want, ActivityLevel(secs), "seconds=%d", secs)
	}
}

func TestHeatmap(t *testing.T) {
	open := &models.Session{Start: now, Duration: 0, Mode: models.ModeWork}
	sessions := []*models.Session{
		closed(0, 9, 20, models.ModeWork, nil),
		closed(0, 11, 15, models.ModeBreak, nil),
		closed(-1, 9, 3, models.ModeWork, nil),
		open,
		{Start: time.Date(2025, 12, 31, 9, 0, 0, 0, loc), Duration: 3600, EndedAt: &now, Mode: models.ModeWork},
	}

	days := Heatmap(sessions, 2026, loc)
	require.Len(t, days, 365)
	assert.Equal(t, "2026-01-01", days[0].Date)
	assert.Equal(t, 0, days[0].Minutes)

	byDate := make(map[string]HeatmapDay)
	for _, d := range days {
		byDate[d.Date] = d
	}
	assert.Equal(t, HeatmapDay{Date: "2026-10-18", Minutes: 35, Sessions: 2, Level: 3}, byDate["2026-10-18"])
	assert.Equal(t, HeatmapDay{Date: "2026-10-17", Minutes: 3, Sessions: 1, Level: 0}, byDate["2026-10-17"])
}

func TestCalculateLevel(t *testing.T) {
	assert.Equal(t, Level{Level: 1, XP: 0, XPForNext: 600}, CalculateLevel(0))
	assert.Equal(t, Level{Level: 2, XP: 30, XPForNext: 600}, CalculateLevel(630))
	assert.Equal(t, 1, CalculateLevel(-5).Level)
}

func TestEarnedBadges(t *testing.T) {
	st := BadgeStats{
		TotalMinutes:   700,
		TotalSessions:  12,
		CurrentStreak:  8,
		LongestStreak:  8,
		SessionsByHour: map[int]int{5: 1, 14: 3},
	}
	var ids []string
	for _, b := range EarnedBadges(st) {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"first", "streak7", "sessions10", "hours10", "early"}, ids)

	assert.Empty(t, EarnedBadges(BadgeStats{}))
}

func TestTopCategories(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, TopCategories(map[string]int{"a": 10, "b": 30, "c": 10}))
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "45m", FormatMinutes(45))
	assert.Equal(t, "2h", FormatMinutes(120))
	assert.Equal(t, "1h 30m", FormatMinutes(90))
	assert.Equal(t, "0m", FormatMinutes(0))
}
