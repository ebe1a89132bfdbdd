package batch

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			if m.done {
				return m, tea.Quit
			}
			// El lote sigue hasta el límite de cuenta; esperar el
			// runDoneMsg para salir con el estado real
			return m, nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	case progressMsg:
		return m.applyUpdate(msg.update)

	case feedClosedMsg:
		// Sin más eventos; el runDoneMsg llega aparte
		return m, nil

	case runDoneMsg:
		m.done = true
		m.summary = msg.summary
		m.runErr = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) applyUpdate(u Update) (tea.Model, tea.Cmd) {
	m.current = u.Current
	m.total = u.Total
	m.username = u.Username
	m.phase = u.Event.Phase()

	if line := eventLine(u); line != "" {
		m.lines = append(m.lines, line)
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}
	}
	if _, ok := u.Event.(domain.WarningDetected); ok {
		m.warnings++
	}

	cmds := []tea.Cmd{waitForUpdate(m.updates)}
	if m.total > 0 {
		cmds = append(cmds, m.bar.SetPercent(float64(u.Current)/float64(m.total)))
	}
	return m, tea.Batch(cmds...)
}

// eventLine convierte un evento en una línea de log, vacía para las
// fases intermedias que no aportan al historial
func eventLine(u Update) string {
	switch ev := u.Event.(type) {
	case domain.WarningDetected:
		return fmt.Sprintf("⚠ %s: fraud warning detected", u.Username)
	case domain.NoWarning:
		return fmt.Sprintf("✓ %s: no warning", u.Username)
	case domain.NotFound:
		return fmt.Sprintf("– %s: account not found", u.Username)
	case domain.LoadFailed:
		return fmt.Sprintf("✗ %s: profile did not load", u.Username)
	case domain.ErrorEvent:
		return fmt.Sprintf("✗ %s: %s", u.Username, ev.Message)
	case domain.SessionRecovery:
		return "… recovering device session"
	default:
		return ""
	}
}
