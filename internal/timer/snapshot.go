package timer

import (
	"math"
	"time"

	"github.com/joescharf/focus/internal/models"
)

// Phase is the machine's lifecycle state.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// Snapshot is a point-in-time copy of the machine state.
type Snapshot struct {
	Phase       Phase
	Mode        models.Mode
	CategoryID  *string
	Target      time.Duration
	Anchor      *time.Time
	Accumulated time.Duration
	Elapsed     time.Duration
	SessionID   string
	Started     *time.Time // start of the open session
	Notified    bool
}

// Remaining returns the time left until the target, never negative.
func (s Snapshot) Remaining() time.Duration {
	if s.Elapsed >= s.Target {
		return 0
	}
	return s.Target - s.Elapsed
}

// ElapsedSeconds returns elapsed time rounded to whole seconds.
func (s Snapshot) ElapsedSeconds() int {
	return roundSeconds(s.Elapsed)
}

// Progress returns elapsed/target clamped to [0, 1].
func (s Snapshot) Progress() float64 {
	if s.Target <= 0 {
		return 0
	}
	return math.Min(1, float64(s.Elapsed)/float64(s.Target))
}

// State converts the snapshot into its persisted form.
func (s Snapshot) State(userID string) *models.TimerState {
	return &models.TimerState{
		UserID:        userID,
		Phase:         string(s.Phase),
		Mode:          s.Mode,
		CategoryID:    s.CategoryID,
		TargetSeconds: int(s.Target / time.Second),
		Anchor:        s.Anchor,
		AccumulatedMs: s.Accumulated.Milliseconds(),
		SessionID:     s.SessionID,
		Started:       s.Started,
		Notified:      s.Notified,
	}
}

// SnapshotFromState rebuilds a snapshot from its persisted form. Elapsed is
// left for the machine to derive.
func SnapshotFromState(st *models.TimerState) Snapshot {
	if st == nil {
		return Snapshot{Phase: PhaseIdle, Mode: models.ModeWork}
	}
	phase := Phase(st.Phase)
	switch phase {
	case PhaseIdle, PhaseRunning, PhasePaused, PhaseCompleted:
	default:
		phase = PhaseIdle
	}
	mode := st.Mode
	if !mode.Valid() {
		mode = models.ModeWork
	}
	return Snapshot{
		Phase:       phase,
		Mode:        mode,
		CategoryID:  st.CategoryID,
		Target:      time.Duration(st.TargetSeconds) * time.Second,
		Anchor:      st.Anchor,
		Accumulated: time.Duration(st.AccumulatedMs) * time.Millisecond,
		SessionID:   st.SessionID,
		Started:     st.Started,
		Notified:    st.Notified,
	}
}

func roundSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds()))
}
