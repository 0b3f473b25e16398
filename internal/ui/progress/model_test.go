package progress

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func TestModel_DoneQuits(t *testing.T) {
	m := New("loading 2026-03", make(chan error))
	if !strings.Contains(m.View(), "loading 2026-03") {
		t.Errorf("View() = %q, want the label", m.View())
	}

	boom := errors.New("boom")
	updated, cmd := m.Update(DoneMsg{Err: boom})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command is not tea.Quit")
	}

	done, err := updated.(Model).Done()
	if !done || !errors.Is(err, boom) {
		t.Errorf("Done() = %v, %v", done, err)
	}
	if updated.View() != "" {
		t.Errorf("View() after done = %q", updated.View())
	}
}

func TestModel_CtrlCCancels(t *testing.T) {
	m := New("x", make(chan error))
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, err := updated.(Model).Done(); !errors.Is(err, ErrCanceled) {
		t.Errorf("Done() err = %v, want ErrCanceled", err)
	}
}

func TestModel_IgnoresTicksWhenDone(t *testing.T) {
	m := New("x", make(chan error))
	updated, _ := m.Update(DoneMsg{})
	if _, cmd := updated.Update(spinner.TickMsg{}); cmd != nil {
		t.Error("spinner kept ticking after done")
	}
}

func TestWait_NonInteractive(t *testing.T) {
	result := make(chan error, 1)
	boom := errors.New("boom")
	result <- boom
	if err := Wait(context.Background(), io.Discard, "x", result, false); !errors.Is(err, boom) {
		t.Errorf("Wait() = %v, want boom", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Wait(ctx, io.Discard, "x", make(chan error), false); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestModel_IgnoresOtherKeys(t *testing.T) {
	m := New("x", make(chan error))
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	if cmd != nil {
		t.Error("unexpected command for an unbound key")
	}
	if done, _ := updated.(Model).Done(); done {
		t.Error("an unbound key ended the wait")
	}
	if !strings.Contains(updated.View(), "esc cancel") {
		t.Errorf("View() = %q, want the cancel hint", updated.View())
	}
}
