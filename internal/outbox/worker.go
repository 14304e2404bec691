// Package outbox retries session writes that failed while a timer was
// stopping, so a close made offline still reaches the session store.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/sessions"
	"github.com/joescharf/focus/internal/store"
	"github.com/joescharf/focus/internal/timer"
)

// Store is the durable queue the worker drains.
type Store interface {
	LeasePendingWrites(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.PendingWrite, error)
	MarkPendingDone(ctx context.Context, id string) error
	MarkPendingFailed(ctx context.Context, id string, nextAttempt time.Time, cause string) error
}

// Config controls batch size, polling cadence and the retry schedule.
type Config struct {
	BatchSize   int           // rows leased per cycle
	Interval    time.Duration // poll interval
	Lease       time.Duration // how long a leased row is hidden from other workers
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Result counts what one processing cycle did.
type Result struct {
	Applied int
	Failed  int
	Dropped int
}

// Worker applies queued writes to a session writer.
type Worker struct {
	store  Store
	target timer.Writer
	clock  clock.Clock
	log    zerolog.Logger
	cfg    Config
}

// NewWorker constructs a Worker from dependencies.
func NewWorker(s Store, target timer.Writer, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return &Worker{store: s, target: target, clock: clock.System{}, log: log, cfg: cfg}
}

// WithClock replaces the worker's time source.
func (w *Worker) WithClock(c clock.Clock) *Worker {
	w.clock = c
	return w
}

// Run starts the polling loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("outbox worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				// Per-row backoff keeps a failing store from hot-looping.
				w.log.Error().Err(err).Msg("outbox process")
			}
		}
	}
}

// Drain processes cycles until no due write is left.
func (w *Worker) Drain(ctx context.Context) (Result, error) {
	var total Result
	for {
		res, err := w.ProcessOnce(ctx)
		total.Applied += res.Applied
		total.Failed += res.Failed
		total.Dropped += res.Dropped
		if err != nil {
			return total, err
		}
		if res == (Result{}) {
			return total, nil
		}
	}
}

// ProcessOnce leases one batch of due writes and applies it.
func (w *Worker) ProcessOnce(ctx context.Context) (Result, error) {
	var res Result
	now := w.clock.Now()
	jobs, err := w.store.LeasePendingWrites(ctx, now, w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return res, err
	}

	for _, j := range jobs {
		err := w.apply(ctx, j)
		switch {
		case err == nil:
			res.Applied++
			w.markDone(ctx, j)
		case permanent(err):
			res.Dropped++
			w.log.Warn().Err(err).Str("id", j.ID).Str("op", string(j.Op)).Str("session", j.SessionID).Msg("dropping pending write")
			w.markDone(ctx, j)
		default:
			res.Failed++
			next := now.Add(w.retryDelay(j.Attempts))
			if e := w.store.MarkPendingFailed(ctx, j.ID, next, err.Error()); e != nil {
				w.log.Error().Err(e).Str("id", j.ID).Msg("markFailed error")
			}
			w.log.Debug().Err(err).Str("id", j.ID).Time("next_attempt", next).Msg("pending write failed")
		}
	}
	return res, nil
}

func (w *Worker) apply(ctx context.Context, j *models.PendingWrite) error {
	switch j.Op {
	case models.PendingOpEndSession:
		if j.EndedAt == nil {
			return fmt.Errorf("%w: end_session %s without end time", sessions.ErrInvalidSession, j.SessionID)
		}
		return w.target.EndSession(ctx, j.SessionID, *j.EndedAt, j.Duration)
	case models.PendingOpUpdateCategory:
		return w.target.UpdateSessionCategory(ctx, j.SessionID, j.CategoryID)
	case models.PendingOpDeleteSession:
		return w.target.DeleteSession(ctx, j.SessionID)
	default:
		return fmt.Errorf("%w: unknown op %s", sessions.ErrInvalidSession, j.Op)
	}
}

func (w *Worker) markDone(ctx context.Context, j *models.PendingWrite) {
	if e := w.store.MarkPendingDone(ctx, j.ID); e != nil {
		w.log.Error().Err(e).Str("id", j.ID).Msg("markDone error")
	}
}

// retryDelay doubles from BaseBackoff per previous attempt, capped at MaxBackoff.
func (w *Worker) retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.BaseBackoff
	b.MaxInterval = w.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 0; i < attempts && d < w.cfg.MaxBackoff; i++ {
		d = b.NextBackOff()
	}
	return d
}

// permanent reports whether retrying err can never succeed.
func permanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, sessions.ErrInvalidSession) ||
		errors.Is(err, sessions.ErrInvalidCategory)
}
