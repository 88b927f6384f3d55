// Package ui provides the live event monitor: a terminal view that tails a
// session's long-poll event stream.
package ui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/nevern02/janusgate/pkg/protocol"
	"github.com/nevern02/janusgate/pkg/session"
)

const maxLogLines = 200

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	opcodeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	senderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type eventMsg struct {
	ev *protocol.Event
}

type streamClosedMsg struct{}

// Model tails one session's event stream.
type Model struct {
	sess    *session.Session
	sub     *session.Subscription
	spinner spinner.Model

	lines  []string
	width  int
	closed bool
}

// NewModel builds a monitor over the session's full event stream.
func NewModel(sess *session.Session) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		sess:    sess,
		sub:     sess.Subscribe(64),
		spinner: sp,
		width:   80,
	}
}

func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.sub.Events()
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.sub.Close()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case eventMsg:
		m.lines = append(m.lines, formatEvent(msg.ev))
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}
		return m, m.waitForEvent()

	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("janusgate monitor (session %d)", m.sess.ID())))
	b.WriteString("\n\n")

	if len(m.lines) == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" waiting for events...\n")
	}
	for _, line := range m.lines {
		b.WriteString(runewidth.Truncate(line, m.width, "…"))
		b.WriteString("\n")
	}

	if m.closed {
		b.WriteString("\n" + errorStyle.Render("event stream closed") + "\n")
	}
	b.WriteString("\n" + footerStyle.Render("Press q to quit"))
	return b.String()
}

func formatEvent(ev *protocol.Event) string {
	ts := timeStyle.Render(time.Now().Format("15:04:05.000"))
	op := opcodeStyle.Render(string(ev.Janus))
	if ev.Janus == protocol.OpError || ev.Error != nil {
		op = errorStyle.Render(string(ev.Janus))
	}

	parts := []string{ts, op}
	if ev.Sender != 0 {
		parts = append(parts, senderStyle.Render(fmt.Sprintf("handle=%d", ev.Sender)))
	}
	if ev.Error != nil {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("%d %s", ev.Error.Code, ev.Error.Reason)))
	}
	if ev.PluginData != nil {
		data, _ := json.Marshal(ev.PluginData.Data)
		parts = append(parts, detailStyle.Render(fmt.Sprintf("%s %s", ev.PluginData.Plugin, data)))
	}
	if ev.Jsep != nil {
		parts = append(parts, detailStyle.Render(fmt.Sprintf("jsep=%s (%d bytes)", ev.Jsep.Type, len(ev.Jsep.SDP))))
	}
	if ev.Candidate != nil {
		if ev.Candidate.Completed {
			parts = append(parts, detailStyle.Render("end-of-candidates"))
		} else {
			parts = append(parts, detailStyle.Render("candidate "+ev.Candidate.Candidate))
		}
	}

	return strings.Join(parts, " ")
}
