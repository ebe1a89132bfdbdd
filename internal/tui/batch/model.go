// Package batch es la TUI de progreso para lotes ejecutados en local
// con icheck run --tui. Consume los eventos del orquestador a través
// de un canal y pinta avance, cuenta actual y resumen final.
package batch

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// Update es un evento de progreso ya desacoplado del orquestador.
// current es 1-indexado.
type Update struct {
	Current  int
	Total    int
	Username string
	Event    domain.Event
}

// Feed adapta un canal de Updates a la firma que espera el orquestador.
// El envío es bloqueante: la TUI drena el canal mientras corre el lote.
func Feed(ch chan<- Update) domain.ProgressFunc {
	return func(current, total int, username string, ev domain.Event) {
		ch <- Update{Current: current, Total: total, Username: username, Event: ev}
	}
}

const maxLogLines = 8

// Model is the Bubbletea model for batch progress
type Model struct {
	width    int
	height   int
	quitting bool

	// Cancela el lote en curso cuando el usuario pulsa q o ctrl+c
	cancel context.CancelFunc

	// Feed de eventos del orquestador
	updates <-chan Update

	// State
	current  int
	total    int
	username string
	phase    string
	lines    []string
	warnings int
	done     bool
	summary  *domain.Summary
	runErr   error

	// Components
	spinner spinner.Model
	bar     progress.Model
}

// New crea el modelo. updates lo alimenta Feed desde el orquestador y
// cancel aborta el lote ante una salida temprana del usuario.
func New(updates <-chan Update, cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		cancel:  cancel,
		updates: updates,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
	}
}

// Init starts the spinner and the event pump
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// Done reporta si el lote terminó (no si el usuario salió antes)
func (m Model) Done() bool { return m.done }

// Summary retorna el resumen final, nil si el lote no terminó
func (m Model) Summary() *domain.Summary { return m.summary }

// Err retorna el error del lote, si lo hubo
func (m Model) Err() error { return m.runErr }
