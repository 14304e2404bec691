package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/client"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/timer"
)

var (
	startMode     string
	startCategory string
)

// timerDriver performs timer actions for one user, either on a machine
// restored from the local store or on the timer of a running server.
type timerDriver interface {
	Status(ctx context.Context) (api.TimerResponse, error)
	Start(ctx context.Context, mode models.Mode, category string) (api.TimerResponse, error)
	Pause(ctx context.Context) (api.TimerResponse, error)
	Resume(ctx context.Context) (api.TimerResponse, error)
	Stop(ctx context.Context) (api.TimerResponse, error)
	Reset(ctx context.Context) (api.TimerResponse, error)
	Close()
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a work or break timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := models.ParseMode(startMode)
		if err != nil {
			return err
		}
		return timerAction(cmd.Context(), "start", func(d timerDriver, ctx context.Context) (api.TimerResponse, error) {
			return d.Start(ctx, mode, startCategory)
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the running timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd.Context(), "pause", timerDriver.Pause)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd.Context(), "resume", timerDriver.Resume)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer and record the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd.Context(), "stop", timerDriver.Stop)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Record the current session and start a fresh one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return timerAction(cmd.Context(), "reset", timerDriver.Reset)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun(cmd.Context())
	},
}

func init() {
	startCmd.Flags().StringVarP(&startMode, "mode", "m", string(models.ModeWork), "Timer mode: work or break")
	startCmd.Flags().StringVarP(&startCategory, "category", "c", "", "Category id or name")

	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd, stopCmd, resetCmd, statusCmd)
}

// openTimerDriver talks to the local server when one is running, and
// otherwise drives a machine restored from the store.
func openTimerDriver(ctx context.Context) (timerDriver, error) {
	if viper.GetString("remote.url") == "" {
		if _, ok := pidFile().IsRunning(); ok {
			url := fmt.Sprintf("http://localhost:%d", viper.GetInt("serve.port"))
			ui.VerboseLog("Using the timer of the server at %s", url)
			return &serverDriver{c: client.New(url, currentUser(), viper.GetDuration("remote.timeout"))}, nil
		}
	}

	s, err := getStore()
	if err != nil {
		return nil, err
	}
	deps := machineDeps{store: s, writer: sessionWriter(s), log: newLogger("focus")}
	m, err := deps.newMachine(ctx, currentUser())
	if err != nil {
		return nil, err
	}
	return &localDriver{m: m, sessions: sessions.NewManager(s), remote: remoteClient() != nil}, nil
}

func timerAction(ctx context.Context, name string, fn func(timerDriver, context.Context) (api.TimerResponse, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dryRun {
		ui.DryRunMsg("Would %s the timer for %s", name, currentUser())
		return nil
	}
	d, err := openTimerDriver(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	resp, err := fn(d, ctx)
	if err != nil {
		return err
	}
	printTimer(resp)
	return nil
}

func statusRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d, err := openTimerDriver(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	resp, err := d.Status(ctx)
	if err != nil {
		return err
	}
	printTimer(resp)
	return nil
}

func printTimer(resp api.TimerResponse) {
	if c := resp.Closed; c != nil {
		switch {
		case c.Deleted:
			ui.Info("Discarded empty session %s", c.SessionID)
		case c.Queued:
			ui.Warning("Recorded %s for session %s (queued, run 'focus sync')",
				output.Clock(seconds(c.Duration)), c.SessionID)
		default:
			ui.Success("Recorded %s for session %s", output.Clock(seconds(c.Duration)), c.SessionID)
		}
	}

	v := resp.Timer
	fmt.Fprintf(ui.Out, "%s  %s  %s\n",
		output.ModeColor(v.Mode), output.PhaseColor(v.Phase), output.Clock(seconds(v.RemainingSeconds)))
	fmt.Fprintf(ui.Out, "%s  %s / %s\n",
		output.Bar(v.Progress, 30), output.Clock(seconds(v.ElapsedSeconds)), output.Clock(seconds(v.TargetSeconds)))
	if v.SessionID != "" {
		ui.VerboseLog("session %s", v.SessionID)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// localDriver drives a machine restored from the store. Every change is
// persisted by the machine's change hook, so the process can exit after
// each action.
type localDriver struct {
	m        *timer.Machine
	sessions *sessions.Manager
	remote   bool
}

func (d *localDriver) Close() { d.m.Close() }

func (d *localDriver) Status(context.Context) (api.TimerResponse, error) {
	return api.TimerResponse{Timer: api.TimerViewOf(d.m.Tick())}, nil
}

func (d *localDriver) Start(ctx context.Context, mode models.Mode, category string) (api.TimerResponse, error) {
	var categoryID *string
	switch {
	case category == "":
	case d.remote:
		// Categories live on the server, which validates the id.
		categoryID = &category
	default:
		id, err := d.sessions.ResolveCategory(ctx, currentUser(), category)
		if err != nil {
			return api.TimerResponse{}, err
		}
		categoryID = id
	}
	snap, err := d.m.Start(ctx, mode, categoryID)
	return api.TimerResponse{Timer: api.TimerViewOf(snap)}, err
}

func (d *localDriver) Pause(context.Context) (api.TimerResponse, error) {
	snap, err := d.m.Pause()
	return api.TimerResponse{Timer: api.TimerViewOf(snap)}, err
}

func (d *localDriver) Resume(context.Context) (api.TimerResponse, error) {
	snap, err := d.m.Resume()
	return api.TimerResponse{Timer: api.TimerViewOf(snap)}, err
}

func (d *localDriver) Stop(ctx context.Context) (api.TimerResponse, error) {
	closed, err := d.m.Stop(ctx)
	if err != nil {
		return api.TimerResponse{}, err
	}
	return api.TimerResponseOf(d.m.Snapshot(), closed), nil
}

func (d *localDriver) Reset(ctx context.Context) (api.TimerResponse, error) {
	snap, closed, err := d.m.Reset(ctx)
	if err != nil {
		return api.TimerResponse{}, err
	}
	return api.TimerResponseOf(snap, closed), nil
}

// serverDriver forwards actions to a running server's timer.
type serverDriver struct {
	c *client.Client
}

func (d *serverDriver) Close() {}

func (d *serverDriver) Status(ctx context.Context) (api.TimerResponse, error) {
	return d.c.Timer(ctx)
}

func (d *serverDriver) Start(ctx context.Context, mode models.Mode, category string) (api.TimerResponse, error) {
	return d.c.StartTimer(ctx, mode, category)
}

func (d *serverDriver) Pause(ctx context.Context) (api.TimerResponse, error) {
	return d.c.PauseTimer(ctx)
}

func (d *serverDriver) Resume(ctx context.Context) (api.TimerResponse, error) {
	return d.c.ResumeTimer(ctx)
}

func (d *serverDriver) Stop(ctx context.Context) (api.TimerResponse, error) {
	return d.c.StopTimer(ctx)
}

func (d *serverDriver) Reset(ctx context.Context) (api.TimerResponse, error) {
	return d.c.ResetTimer(ctx)
}
