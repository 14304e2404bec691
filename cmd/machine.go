package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/joescharf/focus/internal/client"
	"github.com/joescharf/focus/internal/daemon"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
	"github.com/joescharf/focus/internal/timer"
)

// machineDeps builds timer machines that record sessions through writer,
// queue failed writes in the store, and persist their state there so the
// next process picks up where this one stopped.
type machineDeps struct {
	store  store.Store
	writer timer.Writer
	log    zerolog.Logger
	tick   time.Duration

	// onChange runs after the state is persisted.
	onChange func(user string, snap timer.Snapshot)
	// onTick sees every tick of a machine with its own loop.
	onTick func(user string, snap timer.Snapshot)
}

// remoteClient returns a client for remote.url, or nil when no remote is set.
func remoteClient() *client.Client {
	url := viper.GetString("remote.url")
	if url == "" {
		return nil
	}
	return client.New(url, currentUser(), viper.GetDuration("remote.timeout"))
}

// sessionWriter is where sessions are recorded: the remote server when one
// is configured, the local store otherwise.
func sessionWriter(s store.Store) timer.Writer {
	if c := remoteClient(); c != nil {
		return c
	}
	return sessions.NewManager(s)
}

// pidFile guards the long-running process that owns the timers.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(statePath("focus-serve.pid"))
}

func timerConfig(user string, set *models.Settings, tick time.Duration) timer.Config {
	cfg := timer.DefaultConfig(user)
	cfg.WorkDuration = time.Duration(set.WorkMinutes) * time.Minute
	cfg.BreakDuration = time.Duration(set.BreakMinutes) * time.Minute
	cfg.TickInterval = tick
	cfg.RestartOnReset = viper.GetBool("timer.restart_on_reset")
	return cfg
}

func (d machineDeps) build(cfg timer.Config) *timer.Machine {
	user := cfg.UserID
	opts := []timer.Option{
		timer.WithLogger(d.log),
		timer.WithQueue(d.store),
		timer.WithOnChange(func(snap timer.Snapshot) {
			d.persist(user, snap)
			if d.onChange != nil {
				d.onChange(user, snap)
			}
		}),
	}
	if d.onTick != nil {
		opts = append(opts, timer.WithOnTick(func(snap timer.Snapshot) { d.onTick(user, snap) }))
	}
	return timer.New(cfg, d.writer, opts...)
}

// newMachine builds user's machine from their settings and restores the
// persisted timer state.
func (d machineDeps) newMachine(ctx context.Context, user string) (*timer.Machine, error) {
	set, err := userSettings(ctx, d.store, user)
	if err != nil {
		return nil, err
	}
	m := d.build(timerConfig(user, set, d.tick))

	st, err := d.store.GetTimerState(ctx, user)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return m, nil
	case err != nil:
		m.Close()
		return nil, fmt.Errorf("load timer state: %w", err)
	}
	if err := m.Restore(timer.SnapshotFromState(st)); err != nil {
		m.Close()
		return nil, fmt.Errorf("restore timer: %w", err)
	}
	// A run that finished while no process was watching completes now.
	m.Tick()
	return m, nil
}

// registry returns a per-user registry. A user whose state cannot be
// restored starts with a fresh default timer.
func (d machineDeps) registry() *timer.Registry {
	return timer.NewRegistry(func(user string) *timer.Machine {
		m, err := d.newMachine(context.Background(), user)
		if err == nil {
			return m
		}
		d.log.Error().Err(err).Str("user", user).Msg("restore timer, starting fresh")
		return d.build(timerConfig(user, models.DefaultSettings(user), d.tick))
	})
}

func (d machineDeps) persist(user string, snap timer.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.SaveTimerState(ctx, snap.State(user)); err != nil {
		d.log.Warn().Err(err).Str("user", user).Msg("persist timer state")
	}
}
