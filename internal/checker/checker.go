package checker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
	"github.com/elsanchez/insta-checker/internal/uia2"
)

// Navigator cubre los pasos de navegación que van por fuera del
// backend de UI: deep links e higiene de vuelta a home.
// *device.Session lo satisface.
type Navigator interface {
	OpenProfileDeepLink(ctx context.Context, username string) error
	GoHome(ctx context.Context)
}

// Config ajusta los tiempos y umbrales del checker. Los defaults
// replican el comportamiento probado en dispositivo real.
type Config struct {
	ScreenshotsDir string

	// Reintentos de navegación al perfil
	NavRetries int

	// Una página con menos caracteres que esto y sin contenido
	// reconocible se considera "en blanco"
	BlankPageMin int

	// Unidad base de pausa entre interacciones de UI. En tests se
	// pone a cero.
	StepDelay time.Duration

	// Espera acotada por la aparición del botón de follow
	WaitTimeout time.Duration

	// Timeout corto para diálogos de confirmación opcionales
	ConfirmTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavRetries <= 0 {
		c.NavRetries = 3
	}
	if c.BlankPageMin <= 0 {
		c.BlankPageMin = 1000
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 10 * time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 3 * time.Second
	}
}

// Checker ejecuta la máquina de estados de verificación para una
// cuenta objetivo: navegar, normalizar estado de follow, pulsar
// follow, detectar pending/advertencia, limpiar.
type Checker struct {
	ui         UIClient
	insp       *Inspector
	nav        Navigator
	cfg        Config
	onProgress func(ev domain.Event)
}

// New crea un checker. onProgress puede ser nil.
func New(ui UIClient, nav Navigator, cfg Config, onProgress func(ev domain.Event)) *Checker {
	cfg.applyDefaults()
	insp := NewInspector(ui)
	if cfg.StepDelay == 0 {
		// Tests: sin pausas tampoco en los sondeos
		insp.PollInterval = time.Millisecond
	}
	return &Checker{ui: ui, insp: insp, nav: nav, cfg: cfg, onProgress: onProgress}
}

// Inspector expone el inspector del checker (lo usa el login)
func (c *Checker) Inspector() *Inspector { return c.insp }

func (c *Checker) report(ev domain.Event) {
	if c.onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("progress observer panic (ignored): %v", r)
		}
	}()
	c.onProgress(ev)
}

func (c *Checker) pause(ctx context.Context, units float64) {
	d := time.Duration(float64(c.cfg.StepDelay) * units)
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// navStatus clasifica el resultado de la navegación al perfil
type navStatus string

const (
	navSuccess    navStatus = "success"
	navNotFound   navStatus = "not_found"
	navLoadFailed navStatus = "load_failed"
	navError      navStatus = "error"
)

// openProfile navega al perfil con deep link, con hasta NavRetries
// intentos. Un match de "cuenta inexistente" es concluyente y no se
// reintenta; la página en blanco sí, volviendo a home antes de cada
// reintento.
func (c *Checker) openProfile(ctx context.Context, username string) (navStatus, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.NavRetries; attempt++ {
		err := func() error {
			if err := c.nav.OpenProfileDeepLink(ctx, username); err != nil {
				return err
			}
			c.pause(ctx, 2)
			return nil
		}()
		if err != nil {
			lastErr = err
			if attempt < c.cfg.NavRetries {
				log.Printf("profile navigation error, retrying (%d/%d): %v", attempt, c.cfg.NavRetries, err)
				c.pause(ctx, 3)
				continue
			}
			return navError, fmt.Errorf("open profile %s: %w", username, err)
		}

		src, err := c.insp.PageSource(ctx)
		if err != nil {
			lastErr = err
			if attempt < c.cfg.NavRetries {
				c.pause(ctx, 3)
				continue
			}
			return navError, fmt.Errorf("read screen for %s: %w", username, err)
		}

		if NotFoundPatterns.Matches(src) {
			return navNotFound, nil
		}
		if len(src) > c.cfg.BlankPageMin && HasRecognizableContent(src, username) {
			return navSuccess, nil
		}

		// Página en blanco: volver a home y reintentar
		if attempt < c.cfg.NavRetries {
			log.Printf("blank profile page, retrying (%d/%d): %s", attempt, c.cfg.NavRetries, username)
			c.nav.GoHome(ctx)
			c.pause(ctx, 2)
		}
	}

	if lastErr != nil {
		return navError, lastErr
	}
	return navLoadFailed, nil
}

// CheckAccount ejecuta la verificación completa de una cuenta.
// Nunca propaga errores: cualquier fallo inesperado queda registrado
// en el resultado, y siempre se vuelve a home antes de retornar para
// no arrastrar estado a la siguiente cuenta.
func (c *Checker) CheckAccount(ctx context.Context, username string) (result *domain.CheckResult) {
	result = domain.NewCheckResult(username)
	c.report(domain.Starting{})

	defer func() {
		if r := recover(); r != nil {
			result.MarkError(fmt.Errorf("panic: %v", r))
			c.report(domain.ErrorEvent{Message: result.Status})
		}
		c.nav.GoHome(ctx)
	}()

	c.report(domain.Navigating{})
	status, err := c.openProfile(ctx, username)
	switch status {
	case navNotFound:
		result.Status = domain.StatusNotFound
		c.report(domain.NotFound{})
		return result
	case navLoadFailed:
		result.Status = domain.StatusLoadFailed
		c.report(domain.LoadFailed{})
		return result
	case navError:
		result.MarkError(err)
		c.report(domain.ErrorEvent{Message: result.Status})
		return result
	}

	if err := c.checkLoadedProfile(ctx, username, result); err != nil {
		result.MarkError(err)
		c.report(domain.ErrorEvent{Message: result.Status})
	}
	return result
}

// checkLoadedProfile cubre los pasos 2-5 de la máquina de estados,
// ya con el perfil cargado
func (c *Checker) checkLoadedProfile(ctx context.Context, username string, result *domain.CheckResult) error {
	// Esperar a que el botón de follow aparezca
	if _, err := c.insp.WaitForID(ctx, c.cfg.WaitTimeout, FollowButtonIDs...); err != nil &&
		!errors.Is(err, uia2.ErrNoSuchElement) {
		return fmt.Errorf("wait follow button: %w", err)
	}

	// Normalizar: si ya seguimos (o hay solicitud), deshacer primero.
	// El chequeo debe partir siempre de un estado neutro.
	already, err := c.isAlreadyFollowing(ctx)
	if err != nil {
		return fmt.Errorf("follow state: %w", err)
	}
	if already {
		log.Printf("%s: already following, resetting state", username)
		if err := c.resetFollowState(ctx); err != nil {
			return fmt.Errorf("reset follow state: %w", err)
		}
	}

	c.report(domain.ClickingFollow{})
	clicked, err := c.clickFollowButton(ctx)
	if err != nil {
		return fmt.Errorf("click follow: %w", err)
	}
	if !clicked {
		// Último recurso: tap ciego en la posición habitual del botón.
		// Asumido como lossy; los árboles de elementos no son fiables.
		log.Printf("%s: follow button not located, blind tap fallback", username)
		if err := c.blindTapFollow(ctx); err != nil {
			return fmt.Errorf("blind tap: %w", err)
		}
	}
	c.pause(ctx, 2)

	// El diálogo pending (cuentas privadas / con revisión) no es la
	// advertencia de fraude; se cierra y se sigue
	if dismissed, err := c.dismissPendingDialog(ctx); err != nil {
		log.Printf("%s: pending dialog handling failed (ignored): %v", username, err)
	} else if dismissed {
		log.Printf("%s: pending dialog dismissed", username)
	}

	src, err := c.insp.PageSource(ctx)
	if err != nil {
		return fmt.Errorf("read screen for warning check: %w", err)
	}

	if FraudWarningPatterns.Matches(src) {
		details := c.warningDetails(ctx)
		shot, err := SaveScreenshot(ctx, c.ui, c.cfg.ScreenshotsDir, username)
		if err != nil {
			// Una advertencia sin captura queda como error, nunca como
			// warning_detected sin evidencia. El diálogo se cierra
			// igual para no contaminar la siguiente cuenta.
			log.Printf("%s: screenshot failed: %v", username, err)
			c.dismissWarning(ctx)
			return fmt.Errorf("screenshot after warning: %w", err)
		}
		result.MarkWarning(details, shot)
		log.Printf("[WARNING] %s: fraud warning detected (%s)", username, details)
		c.report(domain.WarningDetected{Details: details, Screenshot: shot})

		// La advertencia implica que el follow no llegó a crearse:
		// no hay nada que deshacer, solo cerrar el diálogo
		c.dismissWarning(ctx)
		return nil
	}

	result.MarkClean()
	log.Printf("[OK] %s: no warning", username)
	c.report(domain.NoWarning{})

	c.pause(ctx, 1)
	c.unfollow(ctx)
	return nil
}

// isAlreadyFollowing consulta la etiqueta del botón de follow por
// resource-id
func (c *Checker) isAlreadyFollowing(ctx context.Context) (bool, error) {
	el, err := c.insp.FindByID(ctx, FollowButtonIDs...)
	if err != nil {
		if errors.Is(err, uia2.ErrNoSuchElement) {
			return false, nil
		}
		return false, err
	}
	return IsFollowingLabel(c.insp.ElementLabel(ctx, el)), nil
}

// resetFollowState dispara el flujo de unfollow de la propia app. Si
// el diálogo de confirmación no aparece en el timeout corto, se cae
// a un back genérico.
func (c *Checker) resetFollowState(ctx context.Context) error {
	el, err := c.insp.FindByID(ctx, FollowButtonIDs...)
	if err != nil {
		return err
	}
	if err := c.ui.Click(ctx, el.ID); err != nil {
		return err
	}
	c.pause(ctx, 1)

	confirm, err := c.insp.WaitForTextAny(ctx, c.cfg.ConfirmTimeout, UnfollowConfirmTexts...)
	if err != nil {
		if errors.Is(err, uia2.ErrNoSuchElement) {
			// Fallback: back genérico
			if err := c.ui.Back(ctx); err != nil {
				return err
			}
			c.pause(ctx, 1)
			return nil
		}
		return err
	}
	if err := c.ui.Click(ctx, confirm.ID); err != nil {
		return err
	}
	c.pause(ctx, 2)
	return nil
}

// clickFollowButton localiza y pulsa el follow. Camino preferido:
// resource-id, descartándolo si su etiqueta ya indica "siguiendo"
// (protege contra carreras). Fallback: lista ordenada de textos.
func (c *Checker) clickFollowButton(ctx context.Context) (bool, error) {
	el, err := c.insp.FindByID(ctx, FollowButtonIDs...)
	if err == nil {
		label := c.insp.ElementLabel(ctx, el)
		if IsFollowingLabel(label) {
			log.Printf("follow button already in following state: %q", label)
			return false, nil
		}
		if err := c.ui.Click(ctx, el.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	if !errors.Is(err, uia2.ErrNoSuchElement) {
		return false, err
	}

	el, err = c.insp.FindByTextAny(ctx, FollowButtonTexts...)
	if err != nil {
		if errors.Is(err, uia2.ErrNoSuchElement) {
			return false, nil
		}
		return false, err
	}
	if IsFollowingLabel(c.insp.ElementLabel(ctx, el)) {
		return false, nil
	}
	if err := c.ui.Click(ctx, el.ID); err != nil {
		return false, err
	}
	return true, nil
}

// blindTapFollow pulsa la coordenada relativa habitual del botón
func (c *Checker) blindTapFollow(ctx context.Context) error {
	w, _, err := c.ui.WindowSize(ctx)
	if err != nil {
		return err
	}
	return c.ui.Tap(ctx, w/2, 580)
}

// dismissPendingDialog detecta y cierra el diálogo "request pending".
// Retorna true si estaba presente.
func (c *Checker) dismissPendingDialog(ctx context.Context) (bool, error) {
	src, err := c.insp.PageSource(ctx)
	if err != nil {
		return false, err
	}
	if !PendingPatterns.Matches(src) {
		return false, nil
	}

	ok, err := c.insp.FindByTextAny(ctx, PendingOKTexts...)
	if err == nil {
		if err := c.ui.Click(ctx, ok.ID); err != nil {
			return true, err
		}
		c.pause(ctx, 1)
		return true, nil
	}
	if !errors.Is(err, uia2.ErrNoSuchElement) {
		return true, err
	}

	// Sin botón de cierre: tap en la zona alta, el diálogo ancla abajo
	if err := c.insp.TapCenterAt(ctx, 200); err != nil {
		return true, err
	}
	c.pause(ctx, 0.5)
	return true, nil
}

// warningDetails extrae los campos opcionales del diálogo de
// advertencia. La ausencia de un campo no es error; la ausencia de
// todos produce el sentinel.
func (c *Checker) warningDetails(ctx context.Context) string {
	var details []string
	for _, d := range WarningDetailTexts {
		el, err := c.insp.FindByTextAny(ctx, d.Patterns...)
		if err != nil {
			continue
		}
		if text, err := c.ui.ElementText(ctx, el.ID); err == nil && text != "" {
			details = append(details, d.Label+": "+text)
		}
	}
	if len(details) == 0 {
		return domain.DetailsUnavailable
	}
	return strings.Join(details, " | ")
}

// dismissWarning cierra el diálogo modal con un tap alto; errores
// ignorados (el GoHome posterior limpia igual)
func (c *Checker) dismissWarning(ctx context.Context) {
	if err := c.insp.TapCenterAt(ctx, 200); err != nil {
		log.Printf("dismiss warning tap failed (ignored): %v", err)
	}
	c.pause(ctx, 0.5)
}

// unfollow deshace el follow recién creado. La ausencia del botón se
// tolera como "ya no siguiendo".
func (c *Checker) unfollow(ctx context.Context) {
	el, err := c.insp.FindByTextAny(ctx, followingLabels...)
	if err != nil {
		return
	}
	if err := c.ui.Click(ctx, el.ID); err != nil {
		log.Printf("unfollow click failed (ignored): %v", err)
		return
	}
	c.pause(ctx, 1)

	confirm, err := c.insp.FindByTextAny(ctx, UnfollowConfirmTexts...)
	if err != nil {
		return
	}
	if err := c.ui.Click(ctx, confirm.ID); err != nil {
		log.Printf("unfollow confirm failed (ignored): %v", err)
		return
	}
	c.pause(ctx, 1)
}
