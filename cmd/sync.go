package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/outbox"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Retry session writes that could not be saved",
	Long: `Retry session writes that could not be saved.

A session closed while its store or server was unreachable is queued
locally. sync applies every queued write that is due.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func syncRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	pending, err := s.ListPendingWrites(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		ui.Success("Nothing to sync")
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would retry %d queued writes", len(pending))
		return nil
	}

	w := outbox.NewWorker(s, sessionWriter(s), outbox.Config{
		BatchSize: viper.GetInt("outbox.batch_size"),
	}, newLogger("focus-sync"))
	res, err := w.Drain(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	if res.Applied > 0 {
		ui.Success("Applied %d queued writes", res.Applied)
	}
	if res.Dropped > 0 {
		ui.Warning("Dropped %d writes that can never apply", res.Dropped)
	}
	if res.Failed > 0 {
		ui.Warning("%d writes failed and will be retried later", res.Failed)
	}
	if res == (outbox.Result{}) {
		ui.Info("%d queued writes are waiting for their next retry", len(pending))
	}
	return nil
}
