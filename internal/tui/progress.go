// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// DefaultProgressBuffer is the queue size used by NewProgressChannel when
	// a non-positive size is requested.
	DefaultProgressBuffer = 16

	progressPadding  = 2
	progressMaxWidth = 60
)

type (
	// ProgressUpdate is one step reported by a long-running operation.
	ProgressUpdate struct {
		// Percent is the completion percentage, clamped to 0..100.
		Percent int
		// Message describes the current step.
		Message string
	}

	// ProgressChannel is a bounded queue of progress updates between a worker
	// goroutine and a renderer. Send never blocks: when the queue is full the
	// oldest pending update is dropped so the newest one always lands.
	ProgressChannel struct {
		mu     sync.Mutex
		ch     chan ProgressUpdate
		closed bool
	}

	// ProgressOptions configures RunProgress.
	ProgressOptions struct {
		// Title is rendered above the bar.
		Title string
		// OnInterrupt is called once when the user presses ctrl+c. Rendering
		// continues until the channel is closed.
		OnInterrupt func()
		// Config holds common TUI configuration.
		Config Config
	}

	progressModel struct {
		title       string
		bar         progress.Model
		updates     <-chan ProgressUpdate
		percent     int
		message     string
		done        bool
		interrupted bool
		onInterrupt func()
	}

	progressUpdateMsg ProgressUpdate
	progressClosedMsg struct{}
)

// NewProgressChannel creates a ProgressChannel holding at most size pending
// updates.
func NewProgressChannel(size int) *ProgressChannel {
	if size <= 0 {
		size = DefaultProgressBuffer
	}
	return &ProgressChannel{ch: make(chan ProgressUpdate, size)}
}

// Send queues u without blocking. Sends after Close are ignored.
func (c *ProgressChannel) Send(u ProgressUpdate) {
	u.Percent = min(max(u.Percent, 0), 100)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- u:
		return
	default:
	}
	select {
	case <-c.ch:
	default:
	}
	select {
	case c.ch <- u:
	default:
	}
}

// Close marks the end of the update stream. It is safe to call more than once.
func (c *ProgressChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Updates returns the receive side of the queue.
func (c *ProgressChannel) Updates() <-chan ProgressUpdate {
	return c.ch
}

// RunProgress renders updates from ch until it is closed. Interactive
// terminals get an animated Bubble Tea bar, everything else one plain line per
// update.
func RunProgress(ctx context.Context, opts ProgressOptions, ch *ProgressChannel) error {
	out := getOutputWriter(opts.Config)
	if !IsInteractive(opts.Config) {
		return runPlainProgress(out, opts.Title, ch.Updates())
	}

	model := newProgressModel(opts, ch.Updates())
	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			// Keep draining so the producer never stalls on a dead renderer.
			for range ch.Updates() {
			}
			return nil
		}
		return fmt.Errorf("progress display: %w", err)
	}
	return nil
}

// runPlainProgress prints "[ 40%] message" lines, skipping repeats.
func runPlainProgress(w io.Writer, title string, updates <-chan ProgressUpdate) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	var last ProgressUpdate
	seen := false
	for u := range updates {
		if seen && u == last {
			continue
		}
		last, seen = u, true
		if _, err := fmt.Fprintf(w, "[%3d%%] %s\n", u.Percent, u.Message); err != nil {
			return err
		}
	}
	return nil
}

func newProgressModel(opts ProgressOptions, updates <-chan ProgressUpdate) *progressModel {
	return &progressModel{
		title:       opts.Title,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressMaxWidth)),
		updates:     updates,
		onInterrupt: opts.OnInterrupt,
	}
}

func waitForUpdate(updates <-chan ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return progressClosedMsg{}
		}
		return progressUpdateMsg(u)
	}
}

// Init implements tea.Model.
func (m *progressModel) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

// Update implements tea.Model.
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressUpdateMsg:
		m.percent = msg.Percent
		m.message = msg.Message
		return m, waitForUpdate(m.updates)
	case progressClosedMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == keyCtrlC && !m.interrupted {
			m.interrupted = true
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-progressPadding*2, 10), progressMaxWidth)
	}
	return m, nil
}

// View implements tea.Model.
func (m *progressModel) View() string {
	pad := strings.Repeat(" ", progressPadding)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	msgStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	if m.title != "" {
		sb.WriteString(titleStyle.Render(m.title) + "\n")
	}
	sb.WriteString(pad + m.bar.ViewAs(float64(m.percent)/100) + "\n")
	msg := m.message
	if m.interrupted && !m.done {
		msg += " (stopping...)"
	}
	sb.WriteString(pad + msgStyle.Render(msg) + "\n")
	return sb.String()
}
