// Package progress shows a spinner while a background operation runs.
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/redtime/internal/keys"
	"github.com/nhle/redtime/internal/theme"
)

// ErrCanceled is returned when the user interrupts the wait.
var ErrCanceled = errors.New("canceled")

// DoneMsg is a tea.Msg delivered when the awaited operation finishes.
type DoneMsg struct {
	Err error
}

// Model renders "<spinner> label" until a DoneMsg arrives.
type Model struct {
	label   string
	result  <-chan error
	spinner spinner.Model
	keys    *keys.KeyMap
	done    bool
	err     error
}

// New creates a model waiting on result.
func New(label string, result <-chan error) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		label:   label,
		result:  result,
		spinner: sp,
		keys:    keys.DefaultKeyMap(),
	}
}

// Init starts the spinner and the wait for the result.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitFor(m.result))
}

func waitFor(result <-chan error) tea.Cmd {
	return func() tea.Msg {
		return DoneMsg{Err: <-result}
	}
}

// Update handles spinner ticks, completion and interrupts.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Cancel) {
			m.done = true
			m.err = ErrCanceled
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner line, or nothing once done.
func (m Model) View() string {
	if m.done {
		return ""
	}
	help := m.keys.Cancel.Help()
	return fmt.Sprintf("%s %s  %s\n", m.spinner.View(), m.label,
		theme.HelpStyle.Render(help.Key+" "+help.Desc))
}

// Done reports whether the operation finished, and its error.
func (m Model) Done() (bool, error) {
	return m.done, m.err
}

// Wait blocks until result delivers. With interactive set, a spinner is
// drawn on out meanwhile.
func Wait(ctx context.Context, out io.Writer, label string, result <-chan error, interactive bool) error {
	if !interactive {
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p := tea.NewProgram(New(label, result), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running progress view: %w", err)
	}
	_, opErr := final.(Model).Done()
	return opErr
}
