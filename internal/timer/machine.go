// Package timer implements the work/break session state machine. Elapsed time
// is always derived from wall-clock timestamps, never from counting ticks, so
// it stays correct across pauses, sleeps and process restarts.
package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
)

// Config holds per-machine settings.
type Config struct {
	UserID         string
	WorkDuration   time.Duration
	BreakDuration  time.Duration
	TickInterval   time.Duration // <= 0: the caller drives Tick
	RestartOnReset bool
	WriteTimeout   time.Duration
	CreateRetries  int
	RetryInterval  time.Duration
}

// DefaultConfig returns the standard 25/5 configuration for userID.
func DefaultConfig(userID string) Config {
	return Config{
		UserID:         userID,
		WorkDuration:   time.Duration(models.DefaultWorkMinutes) * time.Minute,
		BreakDuration:  time.Duration(models.DefaultBreakMinutes) * time.Minute,
		TickInterval:   250 * time.Millisecond,
		RestartOnReset: true,
		WriteTimeout:   10 * time.Second,
		CreateRetries:  2,
		RetryInterval:  200 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.UserID)
	if c.WorkDuration <= 0 {
		c.WorkDuration = d.WorkDuration
	}
	if c.BreakDuration <= 0 {
		c.BreakDuration = d.BreakDuration
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.CreateRetries < 0 {
		c.CreateRetries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = d.RetryInterval
	}
	return c
}

// Closed describes how an open session was finished by Stop or Reset.
type Closed struct {
	SessionID string
	EndedAt   time.Time
	Duration  int // seconds
	Deleted   bool
	Queued    bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithQueue sets the outbox failed writes are queued to.
func WithQueue(q Queue) Option {
	return func(m *Machine) { m.queue = q }
}

// WithOnComplete registers a callback fired once when a run reaches its target.
func WithOnComplete(fn func(Snapshot)) Option {
	return func(m *Machine) { m.onComplete = fn }
}

// WithOnChange registers a callback fired after every transition.
func WithOnChange(fn func(Snapshot)) Option {
	return func(m *Machine) { m.onChange = fn }
}

// WithOnTick registers a callback fired on every tick.
func WithOnTick(fn func(Snapshot)) Option {
	return func(m *Machine) { m.onTick = fn }
}

// Machine is one user's timer.
type Machine struct {
	cfg        Config
	writer     Writer
	queue      Queue
	clock      clock.Clock
	log        zerolog.Logger
	onComplete func(Snapshot)
	onChange   func(Snapshot)
	onTick     func(Snapshot)

	// opMu serializes transitions, including the store writes they make.
	opMu sync.Mutex

	mu          sync.Mutex
	phase       Phase
	mode        models.Mode
	categoryID  *string
	target      time.Duration
	anchor      *time.Time
	accumulated time.Duration
	lastElapsed time.Duration
	sessionID   string
	started     time.Time // start of the open session, zero when unknown
	notified    bool
	cancelLoop  context.CancelFunc
}

// New creates an idle machine persisting through w.
func New(cfg Config, w Writer, opts ...Option) *Machine {
	cfg = cfg.withDefaults()
	m := &Machine{
		cfg:    cfg,
		writer: w,
		clock:  clock.System{},
		log:    zerolog.Nop(),
		phase:  PhaseIdle,
		mode:   models.ModeWork,
		target: cfg.WorkDuration,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// UserID returns the owner of the machine.
func (m *Machine) UserID() string { return m.cfg.UserID }

// Snapshot returns the current state with elapsed derived from the clock.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.clock.Now())
}

// Start opens a new session and begins counting.
func (m *Machine) Start(ctx context.Context, mode models.Mode, categoryID *string) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.start(ctx, mode, categoryID)
}

func (m *Machine) start(ctx context.Context, mode models.Mode, categoryID *string) (Snapshot, error) {
	if !mode.Valid() {
		return m.Snapshot(), fmt.Errorf("invalid mode %q", mode)
	}

	m.mu.Lock()
	if m.phase != PhaseIdle || m.sessionID != "" {
		return m.refuseLocked("start")
	}
	now := m.clock.Now()
	m.mu.Unlock()

	id, err := m.createWithRetry(ctx, categoryID, now, mode)
	if err != nil {
		m.log.Error().Err(err).Str("user", m.cfg.UserID).Str("mode", string(mode)).Msg("create session failed")
		return m.Snapshot(), fmt.Errorf("%w: create session: %w", ErrPersistence, err)
	}

	m.mu.Lock()
	m.phase = PhaseRunning
	m.mode = mode
	m.categoryID = categoryID
	m.target = m.durationFor(mode)
	m.anchor = &now
	m.accumulated = 0
	m.lastElapsed = 0
	m.sessionID = id
	m.started = now
	m.notified = false
	m.startLoopLocked()
	snap := m.snapshotLocked(now)
	m.mu.Unlock()

	m.log.Info().Str("user", m.cfg.UserID).Str("session", id).Str("mode", string(mode)).Msg("timer started")
	m.changed(snap)
	return snap, nil
}

// createWithRetry opens the session under an id chosen up front, so an
// attempt that committed but reported failure is not duplicated by the retry.
func (m *Machine) createWithRetry(ctx context.Context, categoryID *string, start time.Time, mode models.Mode) (string, error) {
	ctx = models.WithSessionID(ctx, ulid.Make().String())
	var id string
	op := func() error {
		var err error
		id, err = m.writer.CreateSession(ctx, m.cfg.UserID, categoryID, start, mode)
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.RetryInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.cfg.CreateRetries)), ctx)

	err := backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		m.log.Warn().Err(err).Dur("retry_in", wait).Msg("create session retry")
	})
	return id, err
}

// Tick recomputes elapsed time and completes the run once the target is
// reached. It never writes to the store.
func (m *Machine) Tick() Snapshot {
	m.mu.Lock()
	now := m.clock.Now()
	completed := false
	if m.phase == PhaseRunning {
		elapsed := m.elapsedLocked(now)
		if elapsed >= m.target && !m.notified {
			m.accumulated = elapsed
			m.anchor = nil
			m.phase = PhaseCompleted
			m.notified = true
			m.stopLoopLocked()
			completed = true
		}
	}
	snap := m.snapshotLocked(now)
	m.mu.Unlock()

	if m.onTick != nil {
		m.onTick(snap)
	}
	if completed {
		m.log.Info().Str("user", m.cfg.UserID).Str("session", snap.SessionID).Msg("timer completed")
		m.changed(snap)
		if m.onComplete != nil {
			m.onComplete(snap)
		}
	}
	return snap
}

// Pause banks elapsed time and stops counting.
func (m *Machine) Pause() (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.phase != PhaseRunning {
		return m.refuseLocked("pause")
	}
	now := m.clock.Now()
	m.accumulated = m.elapsedLocked(now)
	m.anchor = nil
	m.phase = PhasePaused
	m.stopLoopLocked()
	snap := m.snapshotLocked(now)
	m.mu.Unlock()

	m.changed(snap)
	return snap, nil
}

// Resume continues a paused run, or a session that survived a restart.
func (m *Machine) Resume() (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.phase != PhasePaused && (m.phase != PhaseIdle || m.sessionID == "") {
		return m.refuseLocked("resume")
	}
	now := m.clock.Now()
	if m.target <= 0 {
		m.target = m.durationFor(m.mode)
	}
	m.anchor = &now
	m.phase = PhaseRunning
	m.notified = false
	m.lastElapsed = m.accumulated
	m.startLoopLocked()
	snap := m.snapshotLocked(now)
	m.mu.Unlock()

	m.changed(snap)
	return snap, nil
}

// Stop ends the open session and returns the machine to idle. The machine is
// idle even when an error is returned.
func (m *Machine) Stop(ctx context.Context) (Closed, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	closed, _, err := m.finish(ctx, "stop")
	return closed, err
}

// Reset finishes the open session like Stop, deleting it when nothing was
// recorded, and starts a fresh run with the same mode and category when
// RestartOnReset is set.
func (m *Machine) Reset(ctx context.Context) (Snapshot, Closed, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	closed, prev, err := m.finish(ctx, "reset")
	if err != nil {
		return m.Snapshot(), closed, err
	}
	if !m.cfg.RestartOnReset {
		return m.Snapshot(), closed, nil
	}
	snap, err := m.start(ctx, prev.Mode, prev.CategoryID)
	return snap, closed, err
}

// finish moves the machine to idle and persists the close of its session.
func (m *Machine) finish(ctx context.Context, op string) (Closed, Snapshot, error) {
	m.mu.Lock()
	if m.phase == PhaseIdle && m.sessionID == "" {
		snap, err := m.refuseLocked(op)
		return Closed{}, snap, err
	}
	now := m.clock.Now()
	prev := m.snapshotLocked(now)
	m.clearLocked()
	snap := m.snapshotLocked(now)
	m.mu.Unlock()

	m.changed(snap)

	closed := Closed{
		SessionID: prev.SessionID,
		EndedAt:   endTime(prev, now),
		Duration:  prev.ElapsedSeconds(),
	}
	if closed.SessionID == "" {
		return closed, prev, nil
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.WriteTimeout)
	defer cancel()

	var (
		err     error
		pending *models.PendingWrite
	)
	if op == "reset" && closed.Duration == 0 {
		closed.Deleted = true
		err = m.writer.DeleteSession(wctx, closed.SessionID)
		pending = &models.PendingWrite{Op: models.PendingOpDeleteSession, SessionID: closed.SessionID}
	} else {
		err = m.writer.EndSession(wctx, closed.SessionID, closed.EndedAt, closed.Duration)
		pending = &models.PendingWrite{
			Op:        models.PendingOpEndSession,
			SessionID: closed.SessionID,
			EndedAt:   &closed.EndedAt,
			Duration:  closed.Duration,
		}
	}
	if err == nil {
		m.log.Info().Str("user", m.cfg.UserID).Str("session", closed.SessionID).
			Int("duration", closed.Duration).Bool("deleted", closed.Deleted).Msg("session closed")
		return closed, prev, nil
	}

	queued, qerr := m.enqueue(ctx, pending, now, err)
	closed.Queued = queued
	return closed, prev, qerr
}

// endTime is when a session closed at now ends. A clock that moved back
// before the session started cannot end it earlier than start plus elapsed.
func endTime(s Snapshot, now time.Time) time.Time {
	if s.Started == nil {
		return now
	}
	if floor := s.Started.Add(s.Elapsed); now.Before(floor) {
		return floor
	}
	return now
}

// enqueue hands a failed write to the outbox. It returns an error wrapping
// ErrPersistence when the write could not be queued either.
func (m *Machine) enqueue(ctx context.Context, w *models.PendingWrite, now time.Time, cause error) (bool, error) {
	m.log.Error().Err(cause).Str("session", w.SessionID).Str("op", string(w.Op)).Msg("session write failed")
	if m.queue == nil {
		return false, fmt.Errorf("%w: %s %s: %w", ErrPersistence, w.Op, w.SessionID, cause)
	}
	w.LastError = cause.Error()
	w.NextAttemptAt = now

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.WriteTimeout)
	defer cancel()
	if err := m.queue.Enqueue(qctx, w); err != nil {
		return false, fmt.Errorf("%w: %s %s: %w (queue: %v)", ErrPersistence, w.Op, w.SessionID, cause, err)
	}
	m.log.Warn().Str("session", w.SessionID).Str("op", string(w.Op)).Msg("session write queued")
	return true, nil
}

// SetCategory changes the category of the open session, or of the next run
// when idle.
func (m *Machine) SetCategory(ctx context.Context, categoryID *string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	m.categoryID = categoryID
	id := m.sessionID
	now := m.clock.Now()
	snap := m.snapshotLocked(now)
	m.mu.Unlock()

	m.changed(snap)
	if id == "" {
		return nil
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.WriteTimeout)
	defer cancel()
	if err := m.writer.UpdateSessionCategory(wctx, id, categoryID); err != nil {
		_, qerr := m.enqueue(ctx, &models.PendingWrite{
			Op:         models.PendingOpUpdateCategory,
			SessionID:  id,
			CategoryID: categoryID,
		}, now, err)
		return qerr
	}
	return nil
}

// SetMode selects the mode of the next run. Only valid while idle.
func (m *Machine) SetMode(mode models.Mode) (Snapshot, error) {
	if !mode.Valid() {
		return m.Snapshot(), fmt.Errorf("invalid mode %q", mode)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.phase != PhaseIdle || m.sessionID != "" {
		return m.refuseLocked("change mode of")
	}
	m.mode = mode
	m.target = m.durationFor(mode)
	snap := m.snapshotLocked(m.clock.Now())
	m.mu.Unlock()

	m.changed(snap)
	return snap, nil
}

// SetDurations changes the work and break targets. Only valid while idle.
func (m *Machine) SetDurations(work, brk time.Duration) error {
	if work <= 0 || brk <= 0 {
		return fmt.Errorf("durations must be positive: work=%s break=%s", work, brk)
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle || m.sessionID != "" {
		m.log.Warn().Str("op", "set durations").Str("phase", string(m.phase)).Msg("invalid timer transition")
		return &TransitionError{Op: "set durations of", Phase: m.phase}
	}
	m.cfg.WorkDuration = work
	m.cfg.BreakDuration = brk
	m.target = m.durationFor(m.mode)
	return nil
}

// Restore loads a persisted snapshot into a fresh machine. A running
// snapshot keeps counting from its original anchor.
func (m *Machine) Restore(s Snapshot) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	if m.phase != PhaseIdle || m.sessionID != "" {
		_, err := m.refuseLocked("restore")
		return err
	}

	mode := s.Mode
	if !mode.Valid() {
		mode = models.ModeWork
	}
	m.mode = mode
	m.categoryID = s.CategoryID
	m.target = s.Target
	if m.target <= 0 {
		m.target = m.durationFor(mode)
	}
	m.accumulated = max(0, s.Accumulated)
	m.lastElapsed = m.accumulated
	m.sessionID = s.SessionID
	m.started = time.Time{}
	if s.Started != nil {
		m.started = *s.Started
	}
	m.notified = s.Notified
	m.anchor = nil
	m.phase = s.Phase

	switch s.Phase {
	case PhaseRunning:
		if s.SessionID == "" {
			m.phase = PhaseIdle
			break
		}
		anchor := m.clock.Now()
		if s.Anchor != nil {
			anchor = *s.Anchor
		}
		m.anchor = &anchor
		if m.started.IsZero() {
			m.started = anchor.Add(-m.accumulated)
		}
		m.notified = false
		m.startLoopLocked()
	case PhasePaused, PhaseCompleted:
		if s.SessionID == "" {
			m.phase = PhaseIdle
		}
	default:
		m.phase = PhaseIdle
	}
	snap := m.snapshotLocked(m.clock.Now())
	m.mu.Unlock()

	m.log.Debug().Str("user", m.cfg.UserID).Str("phase", string(snap.Phase)).Msg("timer restored")
	m.changed(snap)
	return nil
}

// Close stops the tick loop without touching the session.
func (m *Machine) Close() {
	m.mu.Lock()
	m.stopLoopLocked()
	m.mu.Unlock()
}

// refuseLocked logs and reports an invalid transition. It releases mu.
func (m *Machine) refuseLocked(op string) (Snapshot, error) {
	phase := m.phase
	snap := m.snapshotLocked(m.clock.Now())
	m.mu.Unlock()
	m.log.Warn().Str("user", m.cfg.UserID).Str("op", op).Str("phase", string(phase)).Msg("invalid timer transition")
	return snap, &TransitionError{Op: op, Phase: phase}
}

func (m *Machine) clearLocked() {
	m.stopLoopLocked()
	m.phase = PhaseIdle
	m.anchor = nil
	m.accumulated = 0
	m.lastElapsed = 0
	m.sessionID = ""
	m.started = time.Time{}
	m.notified = false
	m.target = m.durationFor(m.mode)
}

// elapsedLocked derives elapsed time from the anchor. A wall clock that moved
// backwards re-anchors instead of shrinking what was already reported.
func (m *Machine) elapsedLocked(now time.Time) time.Duration {
	if m.phase != PhaseRunning || m.anchor == nil {
		return m.accumulated
	}
	delta := max(0, now.Sub(*m.anchor))
	elapsed := m.accumulated + delta
	if elapsed < m.lastElapsed {
		m.accumulated = m.lastElapsed
		a := now
		m.anchor = &a
		elapsed = m.lastElapsed
	}
	m.lastElapsed = elapsed
	return elapsed
}

func (m *Machine) snapshotLocked(now time.Time) Snapshot {
	elapsed := m.elapsedLocked(now)
	s := Snapshot{
		Phase:       m.phase,
		Mode:        m.mode,
		CategoryID:  m.categoryID,
		Target:      m.target,
		Accumulated: m.accumulated,
		Elapsed:     elapsed,
		SessionID:   m.sessionID,
		Notified:    m.notified,
	}
	if m.anchor != nil {
		a := *m.anchor
		s.Anchor = &a
	}
	if !m.started.IsZero() {
		st := m.started
		s.Started = &st
	}
	return s
}

func (m *Machine) durationFor(mode models.Mode) time.Duration {
	if mode == models.ModeBreak {
		return m.cfg.BreakDuration
	}
	return m.cfg.WorkDuration
}

func (m *Machine) startLoopLocked() {
	if m.cfg.TickInterval <= 0 || m.cancelLoop != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelLoop = cancel
	go m.loop(ctx, m.cfg.TickInterval)
}

func (m *Machine) stopLoopLocked() {
	if m.cancelLoop != nil {
		m.cancelLoop()
		m.cancelLoop = nil
	}
}

func (m *Machine) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

func (m *Machine) changed(s Snapshot) {
	if m.onChange != nil {
		m.onChange(s)
	}
}
