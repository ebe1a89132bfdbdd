package batch

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// waitForUpdate lee el siguiente evento del canal. El canal cerrado
// señala que el orquestador terminó de emitir.
func waitForUpdate(ch <-chan Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return progressMsg{update: u}
	}
}

// RunDone construye el mensaje final que el invocador inyecta con
// Program.Send cuando Run retorna.
func RunDone(summary *domain.Summary, err error) tea.Msg {
	return runDoneMsg{summary: summary, err: err}
}
