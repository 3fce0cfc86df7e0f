// Package tui renders the `orcad watch` view: a live tail of one
// session's progress stream.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/orcalabs/orcad/internals/schemas"
	"github.com/orcalabs/orcad/sdk"
)

const progressTail = 10

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Watch tails the session's event stream until it reaches a terminal
// status or the user quits.
func Watch(client *sdk.Client, sessionID string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.Watch(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(newWatchModel(sessionID, events)).Run()
	return err
}

type eventMsg schemas.Event

type streamClosedMsg struct{}

type watchModel struct {
	sessionID string
	events    <-chan schemas.Event
	spin      spinner.Model
	lines     []string
	session   *schemas.Session
	closed    bool
}

func newWatchModel(sessionID string, events <-chan schemas.Event) watchModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	return watchModel{sessionID: sessionID, events: events, spin: spin}
}

func (m watchModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, open := <-m.events
		if !open {
			return streamClosedMsg{}
		}
		return eventMsg(event)
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForEvent())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case eventMsg:
		event := schemas.Event(msg)
		switch event.Type {
		case schemas.EventSnapshot:
			if event.Session != nil {
				m.session = event.Session
				m.lines = event.Session.Progress
			}
		case schemas.EventProgress:
			m.lines = append(m.lines, event.Message)
		}
		return m, m.waitForEvent()
	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session " + m.sessionID))
	b.WriteString("  ")
	b.WriteString(m.statusView())
	b.WriteString("\n\n")

	lines := m.lines
	if len(lines) > progressTail {
		lines = lines[len(lines)-progressTail:]
	}
	for _, line := range lines {
		b.WriteString("  " + line + "\n")
	}
	if m.session == nil || !m.session.Status.Terminal() {
		b.WriteString("\n" + m.spin.View() + dimStyle.Render(" waiting for events (q to quit)"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m watchModel) statusView() string {
	if m.session == nil {
		return dimStyle.Render("connecting")
	}
	status := string(m.session.Status)
	switch m.session.Status {
	case schemas.SessionStatusCompleted:
		return okStyle.Render(status)
	case schemas.SessionStatusError:
		if m.session.Error != "" {
			status = fmt.Sprintf("%s: %s", status, m.session.Error)
		}
		return errStyle.Render(status)
	case schemas.SessionStatusStopped:
		return stoppedStyle.Render(status)
	default:
		return status
	}
}
