package batch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles with adaptive colors for light/dark backgrounds
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"}).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "63", Dark: "63"}).
			Padding(1, 2)
)

// View renders the current view
func (m Model) View() string {
	if m.done {
		return m.viewSummary()
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Instagram Fraud Warning Check"))
	b.WriteString("\n\n")

	if m.username != "" {
		b.WriteString(fmt.Sprintf("  %s %s (%d/%d, %s)\n\n",
			m.spinner.View(), m.username, m.current, m.total, m.phase))
	} else {
		b.WriteString(fmt.Sprintf("  %s waiting for device...\n\n", m.spinner.View()))
	}

	b.WriteString("  " + m.bar.View() + "\n\n")

	for _, line := range m.lines {
		b.WriteString("  " + line + "\n")
	}

	if m.warnings > 0 {
		b.WriteString("\n" + warnStyle.Render(fmt.Sprintf("  %d warning(s) so far", m.warnings)) + "\n")
	}

	if m.quitting {
		b.WriteString("\n" + helpStyle.Render("  stopping after current account..."))
	} else {
		b.WriteString("\n" + helpStyle.Render("  q: stop after current account"))
	}

	return b.String()
}

func (m Model) viewSummary() string {
	var b strings.Builder

	if m.runErr != nil {
		b.WriteString(warnStyle.Render("Batch stopped: "+m.runErr.Error()) + "\n\n")
	} else {
		b.WriteString(successStyle.Render("Batch completed") + "\n\n")
	}

	if s := m.summary; s != nil {
		rows := fmt.Sprintf(
			"Warnings:     %d\nNo warning:   %d\nNot found:    %d\nLoad failed:  %d\nErrors:       %d\n\nTotal:        %d",
			s.Warnings, s.Normal, s.NotFound, s.LoadFailed, s.Errors, s.Total())
		b.WriteString(boxStyle.Render(rows) + "\n")
	}

	return b.String()
}
