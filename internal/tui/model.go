// Package tui renders a live timer in the terminal for `focus run`.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/output"
	"github.com/joescharf/focus/internal/timer"
)

// Machine is the part of timer.Machine the view drives.
type Machine interface {
	Snapshot() timer.Snapshot
	Tick() timer.Snapshot
	Start(ctx context.Context, mode models.Mode, categoryID *string) (timer.Snapshot, error)
	Pause() (timer.Snapshot, error)
	Resume() (timer.Snapshot, error)
	Stop(ctx context.Context) (timer.Closed, error)
	Reset(ctx context.Context) (timer.Snapshot, timer.Closed, error)
	SetMode(mode models.Mode) (timer.Snapshot, error)
}

// Options configures the view.
type Options struct {
	// Category applies to runs started from the view.
	Category *string
	// CategoryName is shown in the header.
	CategoryName string
	// AutoStartBreaks starts a break as soon as a work run completes.
	AutoStartBreaks bool
	// Bell rings the terminal bell on completion.
	Bell bool
	// Refresh is the redraw interval. Zero means 250ms.
	Refresh time.Duration
	// BellOut receives the bell. Nil means stderr.
	BellOut io.Writer
}

type tickMsg time.Time

type actionMsg struct {
	snap   timer.Snapshot
	closed *timer.Closed
	err    error
	note   string
}

// Model is the Bubble Tea model for the live timer.
type Model struct {
	ctx     context.Context
	machine Machine
	opts    Options

	snap   timer.Snapshot
	status string
	err    error
	width  int
}

// New creates a model showing machine's current state.
func New(ctx context.Context, m Machine, opts Options) Model {
	if opts.Refresh <= 0 {
		opts.Refresh = 250 * time.Millisecond
	}
	if opts.BellOut == nil {
		opts.BellOut = os.Stderr
	}
	return Model{ctx: ctx, machine: m, opts: opts, snap: m.Snapshot()}
}

// Run shows the view until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Machine, opts Options) error {
	_, err := tea.NewProgram(New(ctx, m, opts), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		prev := m.snap.Phase
		m.snap = m.machine.Tick()
		if m.snap.Phase == timer.PhaseCompleted && prev != timer.PhaseCompleted {
			return m, tea.Batch(m.tick(), m.completeCmd(m.snap))
		}
		return m, m.tick()

	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.status = msg.note
			if msg.closed != nil {
				m.status = closedNote(*msg.closed)
				if msg.note != "" {
					m.status = msg.note + " " + m.status
				}
			}
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ", "space", "p":
		return m, m.togglePauseCmd()
	case "s", "enter":
		if m.snap.Phase == timer.PhaseIdle && m.snap.SessionID == "" {
			return m, m.startCmd(m.snap.Mode)
		}
		return m, m.stopCmd()
	case "r":
		return m, m.resetCmd()
	case "w":
		return m, m.setModeCmd(models.ModeWork)
	case "b":
		return m, m.setModeCmd(models.ModeBreak)
	}
	return m, nil
}

func (m Model) startCmd(mode models.Mode) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.machine.Start(m.ctx, mode, m.opts.Category)
		return actionMsg{snap: snap, err: err, note: "started"}
	}
}

func (m Model) togglePauseCmd() tea.Cmd {
	return func() tea.Msg {
		var (
			snap timer.Snapshot
			err  error
			note string
		)
		if m.snap.Phase == timer.PhaseRunning {
			snap, err = m.machine.Pause()
			note = "paused"
		} else {
			snap, err = m.machine.Resume()
			note = "resumed"
		}
		return actionMsg{snap: snap, err: err, note: note}
	}
}

func (m Model) stopCmd() tea.Cmd {
	return func() tea.Msg {
		closed, err := m.machine.Stop(m.ctx)
		return actionMsg{snap: m.machine.Snapshot(), closed: &closed, err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	return func() tea.Msg {
		snap, closed, err := m.machine.Reset(m.ctx)
		return actionMsg{snap: snap, closed: &closed, err: err, note: "reset"}
	}
}

func (m Model) setModeCmd(mode models.Mode) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.machine.SetMode(mode)
		return actionMsg{snap: snap, err: err}
	}
}

// completeCmd records the finished run and switches to the other mode,
// starting the break right away when AutoStartBreaks is set.
func (m Model) completeCmd(done timer.Snapshot) tea.Cmd {
	return func() tea.Msg {
		title, body := timer.CompletionMessage(done.Mode)
		if m.opts.Bell {
			_, _ = fmt.Fprint(m.opts.BellOut, "\a")
		}
		note := title + " " + body

		closed, err := m.machine.Stop(m.ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		next := models.ModeBreak
		if done.Mode == models.ModeBreak {
			next = models.ModeWork
		}
		snap, err := m.machine.SetMode(next)
		if err != nil {
			return actionMsg{err: err}
		}
		if next == models.ModeBreak && m.opts.AutoStartBreaks {
			snap, err = m.machine.Start(m.ctx, next, m.opts.Category)
			if err != nil {
				return actionMsg{err: err}
			}
		}
		return actionMsg{snap: snap, closed: &closed, note: note}
	}
}

func closedNote(c timer.Closed) string {
	switch {
	case c.SessionID == "":
		return ""
	case c.Deleted:
		return "empty session discarded"
	case c.Queued:
		return fmt.Sprintf("recorded %s (queued for sync)", output.Clock(time.Duration(c.Duration)*time.Second))
	default:
		return fmt.Sprintf("recorded %s", output.Clock(time.Duration(c.Duration)*time.Second))
	}
}

func (m Model) View() string {
	snap := m.snap
	mode := string(snap.Mode)
	modeStyle := lipgloss.NewStyle().Foreground(modeColor(mode)).Bold(true)

	header := modeStyle.Render(strings.ToUpper(mode))
	if m.opts.CategoryName != "" {
		header += mutedStyle.Render("  " + m.opts.CategoryName)
	}

	phase := string(snap.Phase)
	if snap.Phase == timer.PhasePaused {
		phase = noticeStyle.Render(phase)
	} else {
		phase = mutedStyle.Render(phase)
	}

	barWidth := 30
	if m.width > 0 {
		barWidth = max(10, min(50, m.width-20))
	}

	lines := []string{
		header + "  " + phase,
		"",
		clockStyle.Foreground(modeColor(mode)).Render(output.Clock(snap.Remaining())),
		mutedStyle.Render(output.Bar(snap.Progress(), barWidth)),
		mutedStyle.Render("elapsed " + output.Clock(snap.Elapsed)),
	}
	if m.status != "" {
		lines = append(lines, "", m.status)
	}
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render(m.err.Error()))
	}
	lines = append(lines, "", mutedStyle.Render(m.helpLine()))

	return frameStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) helpLine() string {
	switch {
	case m.snap.Phase == timer.PhaseIdle && m.snap.SessionID == "":
		return "s start · w/b work/break · q quit"
	case m.snap.Phase == timer.PhaseRunning:
		return "space pause · s stop · r reset · q quit"
	default:
		return "space resume · s stop · r reset · q quit"
	}
}
