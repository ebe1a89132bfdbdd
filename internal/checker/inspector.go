package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elsanchez/insta-checker/internal/uia2"
)

// UIClient es la superficie del backend de automatización que el
// checker necesita. *device.Session la satisface; los tests usan un
// fake en memoria.
type UIClient interface {
	Source(ctx context.Context) (string, error)
	FindElement(ctx context.Context, strategy, selector string) (*uia2.Element, error)
	Click(ctx context.Context, elementID string) error
	ElementText(ctx context.Context, elementID string) (string, error)
	ElementAttr(ctx context.Context, elementID, name string) (string, error)
	Displayed(ctx context.Context, elementID string) bool
	Tap(ctx context.Context, x, y int) error
	WindowSize(ctx context.Context) (width, height int, err error)
	Back(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	SendKeys(ctx context.Context, elementID, text string) error
	Clear(ctx context.Context, elementID string) error
}

// Inspector responde preguntas sobre la pantalla actual: volcado de
// texto, búsqueda por resource-id estable y fallback por texto.
type Inspector struct {
	ui UIClient

	// Intervalo entre sondeos al esperar un elemento
	PollInterval time.Duration
}

// NewInspector crea un inspector sobre el cliente dado
func NewInspector(ui UIClient) *Inspector {
	return &Inspector{ui: ui, PollInterval: 500 * time.Millisecond}
}

// PageSource retorna el volcado completo de la pantalla
func (i *Inspector) PageSource(ctx context.Context) (string, error) {
	return i.ui.Source(ctx)
}

// FindByID busca por resource-id estable, en orden, y retorna el
// primer elemento visible. Preferido sobre texto: resiste la
// localización y los cambios menores de UI.
func (i *Inspector) FindByID(ctx context.Context, ids ...string) (*uia2.Element, error) {
	for _, id := range ids {
		el, err := i.ui.FindElement(ctx, uia2.ByID, id)
		if err != nil {
			if errors.Is(err, uia2.ErrNoSuchElement) {
				continue
			}
			return nil, err
		}
		if i.ui.Displayed(ctx, el.ID) {
			return el, nil
		}
	}
	return nil, uia2.ErrNoSuchElement
}

// FindByTextAny prueba cada patrón de texto en orden y retorna el
// primer match. Fallback cuando no hay resource-id o la app está en
// un idioma no probado.
func (i *Inspector) FindByTextAny(ctx context.Context, patterns ...string) (*uia2.Element, error) {
	for _, p := range patterns {
		sel := fmt.Sprintf(`new UiSelector().textContains("%s")`, escapeUiSelector(p))
		el, err := i.ui.FindElement(ctx, uia2.ByUiAutomator, sel)
		if err != nil {
			if errors.Is(err, uia2.ErrNoSuchElement) {
				continue
			}
			return nil, err
		}
		return el, nil
	}
	return nil, uia2.ErrNoSuchElement
}

// WaitForID sondea FindByID hasta el timeout. Nunca bloquea
// indefinidamente.
func (i *Inspector) WaitForID(ctx context.Context, timeout time.Duration, ids ...string) (*uia2.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := i.FindByID(ctx, ids...)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, uia2.ErrNoSuchElement) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, uia2.ErrNoSuchElement
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(i.PollInterval):
		}
	}
}

// WaitForTextAny sondea FindByTextAny hasta el timeout
func (i *Inspector) WaitForTextAny(ctx context.Context, timeout time.Duration, patterns ...string) (*uia2.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := i.FindByTextAny(ctx, patterns...)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, uia2.ErrNoSuchElement) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, uia2.ErrNoSuchElement
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(i.PollInterval):
		}
	}
}

// TapCenterAt pulsa el centro horizontal a la altura dada. Los
// diálogos de la app se anclan abajo, así que un tap alto los cierra.
func (i *Inspector) TapCenterAt(ctx context.Context, y int) error {
	w, _, err := i.ui.WindowSize(ctx)
	if err != nil {
		return fmt.Errorf("window size: %w", err)
	}
	return i.ui.Tap(ctx, w/2, y)
}

// ElementLabel retorna el texto del elemento, o su content-desc si
// el texto está vacío
func (i *Inspector) ElementLabel(ctx context.Context, el *uia2.Element) string {
	if text, err := i.ui.ElementText(ctx, el.ID); err == nil && text != "" {
		return text
	}
	if desc, err := i.ui.ElementAttr(ctx, el.ID, "content-desc"); err == nil {
		return desc
	}
	return ""
}

// escapeUiSelector escapa comillas y backslashes para el DSL de
// UiSelector
func escapeUiSelector(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
