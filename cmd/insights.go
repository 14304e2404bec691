package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/stats"
	"github.com/joescharf/focus/internal/streak"
)

var (
	statsWeek   bool
	heatmapYear int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show focus statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsRun(cmd.Context())
	},
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show a year of activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return heatmapRun(cmd.Context())
	},
}

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the current and longest streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		return streakRun(cmd.Context())
	},
}

var badgesCmd = &cobra.Command{
	Use:     "badges",
	Aliases: []string{"achievements"},
	Short:   "Show level and badges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return badgesRun(cmd.Context())
	},
}

func init() {
	statsCmd.Flags().BoolVarP(&statsWeek, "week", "w", false, "Show the last 7 days day by day")
	heatmapCmd.Flags().IntVarP(&heatmapYear, "year", "y", 0, "Year to show (default current year)")

	rootCmd.AddCommand(statsCmd, heatmapCmd, streakCmd, badgesCmd)
}

type insightServices struct {
	streaks *streak.Service
	stats   *stats.Service
}

func localInsights() (insightServices, error) {
	s, err := getStore()
	if err != nil {
		return insightServices{}, err
	}
	streaks := streak.NewService(s, nil)
	return insightServices{streaks: streaks, stats: stats.NewService(s, streaks, nil)}, nil
}

func statsRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	user := currentUser()

	var (
		view  api.StatsView
		names = map[string]string{}
	)
	if c := remoteClient(); c != nil {
		v, err := c.Stats(ctx)
		if err != nil {
			return err
		}
		view = v
	} else {
		svc, err := localInsights()
		if err != nil {
			return err
		}
		sum, err := svc.stats.Summary(ctx, user)
		if err != nil {
			return err
		}
		view = api.StatsViewOf(sum)
		mgr, err := sessionManager()
		if err != nil {
			return err
		}
		cats, err := mgr.ListCategories(ctx, user)
		if err != nil {
			return err
		}
		for _, c := range cats {
			names[c.ID] = c.Name
		}
	}

	level := stats.CalculateLevel(view.TotalMinutes)
	fmt.Fprintf(ui.Out, "Today      %s\n", output.Cyan(stats.FormatMinutes(view.TodayMinutes)))
	fmt.Fprintf(ui.Out, "This week  %s\n", stats.FormatMinutes(view.WeeklyMinutes))
	fmt.Fprintf(ui.Out, "Total      %s in %d sessions\n", stats.FormatMinutes(view.TotalMinutes), view.TotalSessions)
	fmt.Fprintf(ui.Out, "Longest    %s\n", stats.FormatMinutes(view.LongestSession))
	fmt.Fprintf(ui.Out, "Breaks     %s\n", stats.FormatMinutes(view.BreakMinutes))
	fmt.Fprintf(ui.Out, "Level      %d  %s %d/%d xp\n", level.Level,
		output.Bar(float64(level.XP)/float64(level.XPForNext), 20), level.XP, level.XPForNext)

	if statsWeek {
		fmt.Fprintln(ui.Out)
		most := 1
		for _, d := range view.DailyMinutes {
			most = max(most, d.Minutes)
		}
		for _, d := range view.DailyMinutes {
			label := d.Date
			if t, err := time.ParseInLocation(time.DateOnly, d.Date, time.Local); err == nil {
				label = t.Format("Mon 01-02")
			}
			fmt.Fprintf(ui.Out, "%s  %s %s\n", label,
				output.Bar(float64(d.Minutes)/float64(most), 30), stats.FormatMinutes(d.Minutes))
		}
	}

	if len(view.CategoryMinutes) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Category", "Time"})
		for _, id := range stats.TopCategories(view.CategoryMinutes) {
			name := names[id]
			if name == "" {
				name = id
			}
			_ = table.Append([]string{name, stats.FormatMinutes(view.CategoryMinutes[id])})
		}
		_ = table.Render()
	}
	return nil
}

func streakRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var view api.StreakView
	if c := remoteClient(); c != nil {
		v, err := c.Streak(ctx)
		if err != nil {
			return err
		}
		view = v
	} else {
		svc, err := localInsights()
		if err != nil {
			return err
		}
		res, err := svc.streaks.Refresh(ctx, currentUser())
		if err != nil {
			return err
		}
		view = api.StreakViewOf(res)
	}

	fmt.Fprintf(ui.Out, "Current streak  %s days\n", output.StreakColor(view.CurrentStreak))
	fmt.Fprintf(ui.Out, "Longest streak  %d days\n", view.LongestStreak)
	if view.QualifiedToday {
		ui.Success("Today counts toward your streak")
	} else if view.CurrentStreak > 0 {
		ui.Warning("Focus today to keep your streak going")
	}
	return nil
}

// heatColors are the cell colors for levels 0 through 4.
var heatColors = []*color.Color{
	color.RGB(0x2d, 0x33, 0x3b),
	color.RGB(0x0e, 0x44, 0x29),
	color.RGB(0x00, 0x6d, 0x32),
	color.RGB(0x26, 0xa6, 0x41),
	color.RGB(0x39, 0xd3, 0x53),
}

func heatmapRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if heatmapYear != 0 && (heatmapYear < 1970 || heatmapYear > 9999) {
		return fmt.Errorf("invalid year %d", heatmapYear)
	}
	svc, err := localInsights()
	if err != nil {
		return err
	}
	days, err := svc.stats.Heatmap(ctx, currentUser(), heatmapYear)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		return nil
	}

	first, err := time.ParseInLocation(time.DateOnly, days[0].Date, time.Local)
	if err != nil {
		return err
	}
	// Rows are weekdays, columns are weeks, as on a wall calendar.
	offset := int(first.Weekday())
	weeks := (offset + len(days) + 6) / 7
	grid := make([][]string, 7)
	for row := range grid {
		grid[row] = make([]string, weeks)
		for col := range grid[row] {
			grid[row][col] = " "
		}
	}
	total, active := 0, 0
	for i, d := range days {
		pos := offset + i
		grid[pos%7][pos/7] = heatColors[min(d.Level, len(heatColors)-1)].Sprint("■")
		total += d.Minutes
		if d.Minutes > 0 {
			active++
		}
	}

	fmt.Fprintf(ui.Out, "%d\n", first.Year())
	labels := []string{"Sun", "   ", "Tue", "   ", "Thu", "   ", "Sat"}
	for row := range grid {
		fmt.Fprintf(ui.Out, "%s %s\n", labels[row], strings.Join(grid[row], ""))
	}
	fmt.Fprintf(ui.Out, "\n%s on %d days\n", stats.FormatMinutes(total), active)
	return nil
}

func badgesRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := localInsights()
	if err != nil {
		return err
	}
	a, err := svc.stats.Achievements(ctx, currentUser())
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "Level %d  %d/%d xp\n\n", a.Level.Level, a.Level.XP, a.Level.XPForNext)
	table := ui.Table([]string{"", "Badge", "Description"})
	earned := 0
	for _, b := range a.Badges {
		name := b.Name
		if b.Earned {
			earned++
			name = output.Green(name)
		}
		_ = table.Append([]string{b.Icon, name, b.Description})
	}
	_ = table.Render()
	fmt.Fprintf(ui.Out, "\n%d of %d earned\n", earned, len(a.Badges))
	return nil
}
