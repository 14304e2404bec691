package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/tui"
)

var (
	runMode     string
	runCategory string
	runStart    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Show a live timer in the terminal",
	Long: `Show a live timer in the terminal.

The timer picks up the state left by 'focus start' and friends, and
keeps it saved, so quitting does not stop a running session.

Keys: s start/stop, space pause/resume, r reset, w/b switch mode, q quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVarP(&runMode, "mode", "m", string(models.ModeWork), "Mode for a run started with --start")
	runCmd.Flags().StringVarP(&runCategory, "category", "c", "", "Category id or name for new runs")
	runCmd.Flags().BoolVar(&runStart, "start", false, "Start a run right away when the timer is idle")
	rootCmd.AddCommand(runCmd)
}

func runRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if pid, ok := pidFile().IsRunning(); ok {
		return fmt.Errorf("the timer is owned by 'focus serve' (pid %d); use focus start/stop or the web UI", pid)
	}
	mode, err := models.ParseMode(runMode)
	if err != nil {
		return err
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	user := currentUser()
	set, err := userSettings(ctx, s, user)
	if err != nil {
		return err
	}

	opts := tui.Options{
		AutoStartBreaks: set.AutoStartBreaks,
		Bell:            set.SoundEnabled,
	}
	if runCategory != "" {
		if remoteClient() != nil {
			opts.Category = &runCategory
			opts.CategoryName = runCategory
		} else {
			mgr := sessions.NewManager(s)
			id, err := mgr.ResolveCategory(ctx, user, runCategory)
			if err != nil {
				return err
			}
			cat, err := s.GetCategory(ctx, *id)
			if err != nil {
				return err
			}
			opts.Category = id
			opts.CategoryName = cat.Name
		}
	}

	// The view drives Tick itself, so the machine runs without its own loop.
	deps := machineDeps{store: s, writer: sessionWriter(s), log: newLogger("focus-run")}
	m, err := deps.newMachine(ctx, user)
	if err != nil {
		return err
	}
	defer m.Close()

	if runStart {
		if snap := m.Snapshot(); snap.SessionID == "" {
			if _, err := m.Start(ctx, mode, opts.Category); err != nil {
				return err
			}
		}
	}
	return tui.Run(ctx, m, opts)
}
