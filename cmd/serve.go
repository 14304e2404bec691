package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/api"
	"github.com/joescharf/focus/internal/outbox"
	webui "github.com/joescharf/focus/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the focus API server in the foreground",
	Long: `Run the focus REST API and live timer websocket in the foreground.

The server owns every user's timer while it runs; 'focus start' and
friends forward to it. It also retries queued session writes.

Use 'focus serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd, serveStopCmd, serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// statePath joins name onto the state directory.
func statePath(name string) string {
	return filepath.Join(viper.GetString("state_dir"), name)
}

func serveLogPath() string {
	return statePath("focus-serve.log")
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	s, err := getStore()
	if err != nil {
		return err
	}
	log := newLogger("focus-serve")

	tick, err := time.ParseDuration(viper.GetString("timer.tick_interval"))
	if err != nil || tick <= 0 {
		tick = 250 * time.Millisecond
	}

	hub := api.NewHub()
	writer := sessionWriter(s)
	deps := machineDeps{
		store:    s,
		writer:   writer,
		log:      log,
		tick:     tick,
		onChange: hub.Publish,
		onTick:   hub.Publish,
	}
	timers := deps.registry()
	defer timers.Close()

	// Restore the default user's timer so a run left going keeps ticking.
	timers.Get(currentUser())

	worker := outbox.NewWorker(s, writer, outbox.Config{
		BatchSize: viper.GetInt("outbox.batch_size"),
		Interval:  viper.GetDuration("outbox.interval"),
	}, log)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("outbox worker stopped")
		}
	}()

	page, err := webui.Handler()
	if err != nil {
		return fmt.Errorf("failed to initialize UI handler: %w", err)
	}
	srv := api.NewServer(s, timers, hub, api.Config{
		DefaultUser:    currentUser(),
		AllowedOrigins: viper.GetStringSlice("serve.allowed_origins"),
		UI:             page,
	}, log)

	addr := fmt.Sprintf(":%d", viper.GetInt("serve.port"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	ui.Info("Serving focus at http://localhost%s", addr)
	log.Info().Str("addr", addr).Msg("server started")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func serveStartRun() error {
	pf := pidFile()
	if pid, ok := pf.IsRunning(); ok {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve", "--port", fmt.Sprint(viper.GetInt("serve.port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %v in the background", exe, args)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(serveLogPath()), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	_ = child.Process.Release()

	for range 50 {
		if pid, ok := pf.IsRunning(); ok {
			ui.Success("Server started (pid %d), logging to %s", pid, serveLogPath())
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not start, see %s", serveLogPath())
}

func serveStopRun() error {
	pf := pidFile()
	pid, ok := pf.IsRunning()
	if !ok {
		return fmt.Errorf("server is not running")
	}
	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	for range 50 {
		if _, ok := pf.IsRunning(); !ok {
			_ = pf.Remove()
			ui.Success("Server stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	ui.Warning("Server did not exit, killing pid %d", pid)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server: %w", err)
	}
	_ = pf.Remove()
	return nil
}

func serveStatusRun() error {
	pid, ok := pidFile().IsRunning()
	if !ok {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server running (pid %d) on port %d", pid, viper.GetInt("serve.port"))
	return nil
}
