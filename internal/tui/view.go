package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kbchatbox/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	convStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	convSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	convUnreadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	senderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	selfStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Padding(0, 1)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)

	helpText = "tab: switch  enter: send  ctrl+o: older  ctrl+r: refresh  esc: quit"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "\n  " + m.spin.View() + " starting..."
	}

	title := titleStyle.Render("kbchatbox")

	convs := paneStyle.Width(convPaneWidth).Height(m.vp.Height).
		Render(m.renderConversations())
	chat := paneStyle.Width(m.vp.Width).Height(m.vp.Height).
		Render(m.vp.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, convs, chat)

	input := m.input.View()

	status := statusStyle.Render(helpText)
	if m.status != "" {
		status = errorStyle.Render(m.status)
	} else if len(m.inflight) > 0 {
		status = statusStyle.Render(m.spin.View() + " working...")
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, body, input, status)
}

func (m Model) renderConversations() string {
	if len(m.convs) == 0 {
		return emptyStyle.Render("no conversations")
	}
	var b strings.Builder
	for i, c := range m.convs {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		line := "  " + name
		switch {
		case i == m.selected:
			line = convSelectedStyle.Render("> " + name)
		case c.Unread:
			line = convUnreadStyle.Render("• " + name)
		default:
			line = convStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderMessage formats one transcript line: timestamp, sender, body. Bodies
// go through the markdown renderer when one is available.
func (m *Model) renderMessage(msg domain.ChatMessage) string {
	ts := timeStyle.Render(msg.SentAt.Format("15:04"))

	sender := senderStyle.Render(msg.Sender)
	if msg.Sender == m.self {
		sender = selfStyle.Render(msg.Sender)
	}

	body := msg.Body
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(msg.Body); err == nil {
			body = strings.TrimSpace(rendered)
		}
	}

	switch msg.Status {
	case domain.DeliveryPending:
		body = pendingStyle.Render(body + " ...")
	case domain.DeliveryFailed:
		body = failedStyle.Render(body + " (failed)")
	}

	return fmt.Sprintf("%s %s %s", ts, sender, body)
}
