package tui

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/clock"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/timer"
)

type memWriter struct {
	next int
	ends map[string]int
}

func (w *memWriter) CreateSession(context.Context, string, *string, time.Time, models.Mode) (string, error) {
	w.next++
	return fmt.Sprintf("s%d", w.next), nil
}

func (w *memWriter) EndSession(_ context.Context, id string, _ time.Time, duration int) error {
	if w.ends == nil {
		w.ends = map[string]int{}
	}
	w.ends[id] = duration
	return nil
}

func (w *memWriter) UpdateSessionCategory(context.Context, string, *string) error { return nil }
func (w *memWriter) DeleteSession(context.Context, string) error                  { return nil }

func newTestModel(t *testing.T, opts Options) (Model, *timer.Machine, *clock.Manual, *memWriter) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	w := &memWriter{}
	cfg := timer.DefaultConfig("alice")
	cfg.TickInterval = 0
	m := timer.New(cfg, w, timer.WithClock(clk))
	t.Cleanup(m.Close)
	if opts.BellOut == nil {
		opts.BellOut = &bytes.Buffer{}
	}
	return New(context.Background(), m, opts), m, clk, w
}

// press feeds a key and runs the resulting command back into the model.
func press(t *testing.T, model Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	if key == "space" {
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	} else {
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := model.Update(msg)
	model = next.(Model)
	if cmd != nil {
		next, _ = model.Update(cmd())
		model = next.(Model)
	}
	return model
}

func TestModel_StartPauseStop(t *testing.T) {
	model, m, clk, w := newTestModel(t, Options{})

	model = press(t, model, "s")
	assert.Equal(t, timer.PhaseRunning, model.snap.Phase)
	assert.Equal(t, "started", model.status)

	clk.Advance(90 * time.Second)
	model = press(t, model, "space")
	assert.Equal(t, timer.PhasePaused, model.snap.Phase)
	assert.Contains(t, model.View(), "01:30")

	clk.Advance(time.Hour)
	model = press(t, model, "space")
	assert.Equal(t, timer.PhaseRunning, model.snap.Phase)

	clk.Advance(30 * time.Second)
	model = press(t, model, "s")
	assert.Equal(t, timer.PhaseIdle, m.Snapshot().Phase)
	assert.Equal(t, 120, w.ends["s1"])
	assert.Contains(t, model.status, "recorded 02:00")
}

func TestModel_ModeSwitch(t *testing.T) {
	model, _, _, _ := newTestModel(t, Options{})

	model = press(t, model, "b")
	assert.Equal(t, models.ModeBreak, model.snap.Mode)
	assert.Contains(t, model.View(), "BREAK")
	assert.Contains(t, model.View(), "05:00")

	model = press(t, model, "w")
	assert.Equal(t, models.ModeWork, model.snap.Mode)
}

func TestModel_InvalidActionShowsError(t *testing.T) {
	model, _, _, _ := newTestModel(t, Options{})

	model = press(t, model, "r")
	require.Error(t, model.err)
	assert.ErrorIs(t, model.err, timer.ErrInvalidTransition)
	assert.Contains(t, model.View(), "cannot reset")
}

func TestModel_CompletionAutoStartsBreak(t *testing.T) {
	bell := &bytes.Buffer{}
	model, m, clk, w := newTestModel(t, Options{AutoStartBreaks: true, Bell: true, BellOut: bell})

	model = press(t, model, "s")
	clk.Advance(25 * time.Minute)

	next, cmd := model.Update(tickMsg(clk.Now()))
	model = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, timer.PhaseCompleted, model.snap.Phase)

	// Batch of the next tick and the completion; run the completion directly.
	msg := model.completeCmd(model.snap)()
	next, _ = model.Update(msg)
	model = next.(Model)

	assert.Equal(t, 1500, w.ends["s1"])
	assert.Equal(t, "\a", bell.String())
	assert.Equal(t, timer.PhaseRunning, m.Snapshot().Phase)
	assert.Equal(t, models.ModeBreak, model.snap.Mode)
	assert.Contains(t, model.status, "Work session complete!")
}

func TestModel_CompletionWithoutAutoStart(t *testing.T) {
	model, m, clk, _ := newTestModel(t, Options{})

	model = press(t, model, "b")
	model = press(t, model, "s")
	clk.Advance(5 * time.Minute)
	next, _ := model.Update(tickMsg(clk.Now()))
	model = next.(Model)

	next, _ = model.Update(model.completeCmd(model.snap)())
	model = next.(Model)

	snap := m.Snapshot()
	assert.Equal(t, timer.PhaseIdle, snap.Phase)
	assert.Equal(t, models.ModeWork, snap.Mode)
	assert.Contains(t, model.status, "Break is over!")
}

func TestModel_Quit(t *testing.T) {
	model, _, _, _ := newTestModel(t, Options{})
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
