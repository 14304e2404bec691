package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all of your sessions, categories, settings and streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return clearRun(cmd.Context())
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm deleting everything")
	rootCmd.AddCommand(clearCmd)
}

func clearRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	user := currentUser()
	if dryRun {
		ui.DryRunMsg("Would delete all data of %s", user)
		return nil
	}
	if !clearYes {
		return fmt.Errorf("this deletes all data of %s; pass --yes to confirm", user)
	}
	if pid, ok := pidFile().IsRunning(); ok {
		return fmt.Errorf("stop 'focus serve' (pid %d) first", pid)
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	if err := s.ClearUserData(ctx, user); err != nil {
		return err
	}
	ui.Success("Deleted all data of %s", user)
	return nil
}
