package board

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Layout constants shared by View and mouse hit-testing.
const (
	menuWidth = 34
	menuTop   = 2 // title line + blank line
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2).Width(menuWidth)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(1).Width(menuWidth).Bold(true).
			Foreground(lipgloss.Color("0")).Background(lipgloss.Color("4"))
	emergencyStyle = lipgloss.NewStyle().PaddingLeft(1).Width(menuWidth).Bold(true).
			Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))

	convStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			PaddingLeft(1)
	incomingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")) // green
	outgoingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4")) // blue
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func (m model) View() string {
	title := titleStyle.Render("Med Board")
	switch m.screen {
	case screenContacts:
		title += dimStyle.Render("  ›  who to message?")
	case screenMessages:
		title += dimStyle.Render("  ›  message for " + m.contact)
	}

	title += "  " + dimStyle.Render(m.now.Format("Mon 02 Jan 2006  15:04:05"))

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.viewMenu(), m.viewConversation())

	status := statusStyle.Render(m.status)
	if m.statusErr {
		status = statusErrStyle.Render(m.status)
	}
	return title + "\n\n" + body + "\n" + status + "\n" + m.help.View(m.keys)
}

func (m model) viewMenu() string {
	items := m.items()
	lines := make([]string, 0, len(items))
	for i, it := range items {
		switch {
		case i == m.cursor && m.screen == screenHome && i == actionEmergency && m.emergency:
			lines = append(lines, emergencyStyle.Render("▶ "+it))
		case i == m.cursor:
			lines = append(lines, selectedStyle.Render("▶ "+it))
		case m.screen == screenHome && i == actionEmergency && m.emergency:
			lines = append(lines, emergencyStyle.Render("  "+it))
		default:
			lines = append(lines, itemStyle.Render(it))
		}
	}
	return strings.Join(lines, "\n")
}

func (m model) viewConversation() string {
	width := m.width - menuWidth - 4
	if width < 20 {
		width = 40
	}
	rows := m.height - menuTop - 5
	if rows < 3 {
		rows = 10
	}

	var lines []string
	if len(m.conversation) == 0 {
		lines = append(lines, dimStyle.Render("No messages yet"))
	}
	start := 0
	if len(m.conversation) > rows {
		start = len(m.conversation) - rows
	}
	for _, l := range m.conversation[start:] {
		stamp := dimStyle.Render(l.at.Format("15:04"))
		var who string
		if l.incoming {
			who = incomingStyle.Render(l.who + ":")
		} else {
			who = outgoingStyle.Render("→ " + l.who + ":")
		}
		lines = append(lines, stamp+" "+who+" "+l.text)
	}
	return convStyle.Width(width).Render(strings.Join(lines, "\n"))
}
