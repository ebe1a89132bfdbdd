package device

import (
	"context"
	"sync"

	"github.com/elsanchez/insta-checker/internal/uia2"
)

// Handle mantiene la sesión vigente a través de recovers y restarts.
// El checker y el runner lo comparten: cuando el manager reemplaza la
// sesión, todas las llamadas siguientes van contra la nueva sin que
// los callers se enteren.
type Handle struct {
	mgr *Manager

	mu sync.RWMutex
	s  *Session
}

// OpenHandle abre la sesión inicial y retorna el handle que la
// gestiona
func (m *Manager) OpenHandle(ctx context.Context) (*Handle, error) {
	s, err := m.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &Handle{mgr: m, s: s}, nil
}

func (h *Handle) current() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// Session retorna la sesión vigente
func (h *Handle) Session() *Session { return h.current() }

// Close cierra la sesión vigente
func (h *Handle) Close(ctx context.Context) error {
	return h.current().DeleteSession(ctx)
}

// IsAlive consulta la sesión vigente
func (h *Handle) IsAlive(ctx context.Context) bool {
	return h.current().IsAlive(ctx)
}

// Recover reemplaza la sesión muerta por una nueva
func (h *Handle) Recover(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.mgr.Recover(ctx, h.s)
	if err != nil {
		return err
	}
	h.s = s
	return nil
}

// Restart hace el reinicio planificado de la sesión
func (h *Handle) Restart(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, err := h.mgr.Restart(ctx, h.s)
	if err != nil {
		return err
	}
	h.s = s
	return nil
}

// Navegación

func (h *Handle) OpenProfileDeepLink(ctx context.Context, username string) error {
	return h.current().OpenProfileDeepLink(ctx, username)
}

func (h *Handle) GoHome(ctx context.Context) {
	h.current().GoHome(ctx)
}

// Delegación del cliente de UI a la sesión vigente

func (h *Handle) Source(ctx context.Context) (string, error) {
	return h.current().Source(ctx)
}

func (h *Handle) FindElement(ctx context.Context, strategy, selector string) (*uia2.Element, error) {
	return h.current().FindElement(ctx, strategy, selector)
}

func (h *Handle) Click(ctx context.Context, elementID string) error {
	return h.current().Click(ctx, elementID)
}

func (h *Handle) ElementText(ctx context.Context, elementID string) (string, error) {
	return h.current().ElementText(ctx, elementID)
}

func (h *Handle) ElementAttr(ctx context.Context, elementID, name string) (string, error) {
	return h.current().ElementAttr(ctx, elementID, name)
}

func (h *Handle) Displayed(ctx context.Context, elementID string) bool {
	return h.current().Displayed(ctx, elementID)
}

func (h *Handle) Tap(ctx context.Context, x, y int) error {
	return h.current().Tap(ctx, x, y)
}

func (h *Handle) WindowSize(ctx context.Context) (int, int, error) {
	return h.current().WindowSize(ctx)
}

func (h *Handle) Back(ctx context.Context) error {
	return h.current().Back(ctx)
}

func (h *Handle) Screenshot(ctx context.Context) ([]byte, error) {
	return h.current().Screenshot(ctx)
}

func (h *Handle) SendKeys(ctx context.Context, elementID, text string) error {
	return h.current().SendKeys(ctx, elementID, text)
}

func (h *Handle) Clear(ctx context.Context, elementID string) error {
	return h.current().Clear(ctx, elementID)
}
