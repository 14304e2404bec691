package stats

// MinutesPerLevel is the work time needed to gain one level.
const MinutesPerLevel = 600

// Level is progress through the level ladder.
type Level struct {
	Level     int
	XP        int
	XPForNext int
}

// CalculateLevel returns the level reached after totalMinutes of work.
func CalculateLevel(totalMinutes int) Level {
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	return Level{
		Level:     totalMinutes/MinutesPerLevel + 1,
		XP:        totalMinutes % MinutesPerLevel,
		XPForNext: MinutesPerLevel,
	}
}

// BadgeStats is what badge rules are evaluated against.
type BadgeStats struct {
	TotalMinutes   int
	TotalSessions  int
	CurrentStreak  int
	LongestStreak  int
	SessionsByHour map[int]int
}

// Badge is an achievement a user can earn.
type Badge struct {
	ID          string
	Name        string
	Description string
	Icon        string
	check       func(BadgeStats) bool
}

// Earned reports whether st satisfies the badge.
func (b Badge) Earned(st BadgeStats) bool {
	return b.check(st)
}

func sessionsBetween(st BadgeStats, from, to int) int {
	n := 0
	for h := from; h <= to; h++ {
		n += st.SessionsByHour[h]
	}
	return n
}

// Badges lists every badge in display order.
var Badges = []Badge{
	{ID: "first", Name: "First Step", Description: "Complete your first session", Icon: "🎯",
		check: func(st BadgeStats) bool { return st.TotalSessions >= 1 }},
	{ID: "streak7", Name: "Week Warrior", Description: "7 day streak", Icon: "🔥",
		check: func(st BadgeStats) bool { return st.CurrentStreak >= 7 }},
	{ID: "streak30", Name: "Monthly Master", Description: "30 day streak", Icon: "⚡",
		check: func(st BadgeStats) bool { return st.CurrentStreak >= 30 }},
	{ID: "sessions10", Name: "Dedicated", Description: "10 sessions", Icon: "💪",
		check: func(st BadgeStats) bool { return st.TotalSessions >= 10 }},
	{ID: "sessions100", Name: "Focus Pro", Description: "100 sessions", Icon: "🏆",
		check: func(st BadgeStats) bool { return st.TotalSessions >= 100 }},
	{ID: "hours10", Name: "Getting Started", Description: "10 hours total", Icon: "🌟",
		check: func(st BadgeStats) bool { return st.TotalMinutes >= 600 }},
	{ID: "hours100", Name: "Century Club", Description: "100 hours total", Icon: "💎",
		check: func(st BadgeStats) bool { return st.TotalMinutes >= 6000 }},
	{ID: "hours500", Name: "Timekeeper", Description: "500 hours total", Icon: "👑",
		check: func(st BadgeStats) bool { return st.TotalMinutes >= 30000 }},
	{ID: "early", Name: "Early Bird", Description: "Session before 6am", Icon: "🌅",
		check: func(st BadgeStats) bool { return sessionsBetween(st, 0, 5) >= 1 }},
	{ID: "night", Name: "Night Owl", Description: "Session after 10pm", Icon: "🦉",
		check: func(st BadgeStats) bool { return sessionsBetween(st, 22, 23) >= 1 }},
	{ID: "streak100", Name: "Century Streak", Description: "100 day streak", Icon: "🎉",
		check: func(st BadgeStats) bool { return st.LongestStreak >= 100 }},
}

// EarnedBadges returns the badges st satisfies.
func EarnedBadges(st BadgeStats) []Badge {
	var out []Badge
	for _, b := range Badges {
		if b.Earned(st) {
			out = append(out, b)
		}
	}
	return out
}
