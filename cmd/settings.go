package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/streak"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change timer and streak settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun(cmd.Context())
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun(cmd.Context())
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change your settings",
	Long: `Change your settings. Only the flags you pass are changed.

New work and break lengths apply from the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsSetRun(cmd)
	},
}

func init() {
	settingsSetCmd.Flags().Int("threshold", 0, "Minutes of work a day needs to count toward the streak")
	settingsSetCmd.Flags().Int("work", 0, "Work run length in minutes")
	settingsSetCmd.Flags().Int("break", 0, "Break run length in minutes")
	settingsSetCmd.Flags().Bool("auto-start-breaks", false, "Start a break as soon as a work run completes")
	settingsSetCmd.Flags().Bool("sound", true, "Ring the bell when a run completes")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsShowRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	set, err := userSettings(ctx, s, currentUser())
	if err != nil {
		return err
	}
	printSettings(set)
	return nil
}

func printSettings(set *models.Settings) {
	fmt.Fprintf(ui.Out, "  %-22s %s\n", "user", set.UserID)
	fmt.Fprintf(ui.Out, "  %-22s %dm\n", "work", set.WorkMinutes)
	fmt.Fprintf(ui.Out, "  %-22s %dm\n", "break", set.BreakMinutes)
	fmt.Fprintf(ui.Out, "  %-22s %dm\n", "streak threshold", set.StreakThresholdMinutes)
	fmt.Fprintf(ui.Out, "  %-22s %v\n", "auto-start breaks", set.AutoStartBreaks)
	fmt.Fprintf(ui.Out, "  %-22s %v\n", "sound", set.SoundEnabled)
}

func settingsSetRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	set, err := userSettings(ctx, s, currentUser())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	changed := false
	if flags.Changed("threshold") {
		v, _ := flags.GetInt("threshold")
		if err := streak.ValidateThreshold(v); err != nil {
			return err
		}
		set.StreakThresholdMinutes = v
		changed = true
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"work", &set.WorkMinutes},
		{"break", &set.BreakMinutes},
	} {
		if !flags.Changed(f.name) {
			continue
		}
		v, _ := flags.GetInt(f.name)
		if v <= 0 {
			return fmt.Errorf("--%s must be positive", f.name)
		}
		*f.dst = v
		changed = true
	}
	if flags.Changed("auto-start-breaks") {
		set.AutoStartBreaks, _ = flags.GetBool("auto-start-breaks")
		changed = true
	}
	if flags.Changed("sound") {
		set.SoundEnabled, _ = flags.GetBool("sound")
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to change: pass --threshold, --work, --break, --auto-start-breaks or --sound")
	}

	if dryRun {
		ui.DryRunMsg("Would save settings")
		printSettings(set)
		return nil
	}
	if err := s.SaveSettings(ctx, set); err != nil {
		return err
	}
	ui.Success("Settings saved")
	printSettings(set)
	return nil
}
