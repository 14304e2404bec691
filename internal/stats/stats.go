// Package stats derives dashboards from session history: the summary, the
// activity heatmap, levels and badges.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/joescharf/focus/internal/calendar"
	"github.com/joescharf/focus/internal/models"
)

// DayMinutes is the work time recorded on one local date.
type DayMinutes struct {
	Date    string
	Minutes int
}

// Summary aggregates a user's sessions. Minutes are counted per session in
// whole minutes, and only work sessions contribute except to BreakMinutes.
type Summary struct {
	TodayMinutes    int
	WeeklyMinutes   int
	TotalSessions   int
	TotalMinutes    int
	LongestSession  int
	WorkMinutes     int
	BreakMinutes    int
	DailyMinutes    []DayMinutes // last 7 days, oldest first
	CategoryMinutes map[string]int
	SessionsByHour  map[int]int
}

// Summarize computes the summary as of now, in now's location.
func Summarize(sessions []*models.Session, now time.Time) Summary {
	loc := now.Location()
	today := calendar.StartOfDay(now)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	sum := Summary{
		CategoryMinutes: make(map[string]int),
		SessionsByHour:  make(map[int]int),
	}
	last7 := make(map[string]int, 7)
	todayKey := calendar.Key(now, loc)
	for i := 6; i >= 0; i-- {
		day, _ := calendar.AddDays(todayKey, -i)
		last7[day] = 0
		sum.DailyMinutes = append(sum.DailyMinutes, DayMinutes{Date: day})
	}

	for _, s := range sessions {
		if s == nil {
			continue
		}
		minutes := s.Minutes()
		if s.Mode != models.ModeWork {
			sum.BreakMinutes += minutes
			continue
		}
		start := s.Start.In(loc)
		if !start.Before(today) {
			sum.TodayMinutes += minutes
		}
		if !start.Before(weekAgo) {
			sum.WeeklyMinutes += minutes
		}
		if _, ok := last7[calendar.Key(start, loc)]; ok {
			last7[calendar.Key(start, loc)] += minutes
		}
		sum.TotalSessions++
		sum.TotalMinutes += minutes
		sum.WorkMinutes += minutes
		sum.LongestSession = max(sum.LongestSession, minutes)
		sum.SessionsByHour[start.Hour()]++
		if s.CategoryID != nil {
			sum.CategoryMinutes[*s.CategoryID] += minutes
		}
	}

	for i := range sum.DailyMinutes {
		sum.DailyMinutes[i].Minutes = last7[sum.DailyMinutes[i].Date]
	}
	return sum
}

// HeatmapDay is one cell of the activity heatmap.
type HeatmapDay struct {
	Date     string
	Minutes  int
	Sessions int
	Level    int
}

// activityThresholds are the minute marks for heatmap levels 1 through 4.
var activityThresholds = []int{5, 15, 30, 60}

// ActivityLevel maps a day's seconds to a heatmap level from 0 to 4.
func ActivityLevel(seconds int) int {
	level := 0
	for i, t := range activityThresholds {
		if seconds >= t*60 {
			level = i + 1
		}
	}
	return level
}

// Heatmap returns one cell per day of year in loc. Only closed sessions count.
func Heatmap(sessions []*models.Session, year int, loc *time.Location) []HeatmapDay {
	type agg struct{ seconds, sessions int }
	days := make(map[string]*agg)
	for _, s := range sessions {
		if s == nil || s.Open() {
			continue
		}
		start := s.Start.In(loc)
		if start.Year() != year {
			continue
		}
		key := calendar.Key(start, loc)
		a := days[key]
		if a == nil {
			a = &agg{}
			days[key] = a
		}
		a.seconds += s.Duration
		a.sessions++
	}

	first := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	var out []HeatmapDay
	for d := first; d.Year() == year; d = d.AddDate(0, 0, 1) {
		key := calendar.Key(d, loc)
		cell := HeatmapDay{Date: key}
		if a := days[key]; a != nil {
			cell.Minutes = a.seconds / 60
			cell.Sessions = a.sessions
			cell.Level = ActivityLevel(a.seconds)
		}
		out = append(out, cell)
	}
	return out
}

// TopCategories returns category ids ordered by minutes, most first.
func TopCategories(minutes map[string]int) []string {
	ids := make([]string, 0, len(minutes))
	for id := range minutes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if minutes[ids[i]] != minutes[ids[j]] {
			return minutes[ids[i]] > minutes[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// FormatMinutes renders minutes as 45m, 2h or 1h 30m.
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
