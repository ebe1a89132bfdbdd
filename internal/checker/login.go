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

// Selectores del flujo de login. Instagram rota los resource-id con
// frecuencia, por eso el fallback por texto.
var (
	loginUsernameIDs = []string{
		"com.instagram.android:id/login_username",
	}
	loginPasswordIDs = []string{
		"com.instagram.android:id/password",
		"com.instagram.android:id/login_password",
	}
	loginButtonTexts = []string{
		"ログイン",
		"Log in",
		"Log In",
	}
	loginFieldHints = []string{
		"ユーザーネーム",
		"Username",
		"Phone number, username",
	}
	passwordFieldHints = []string{
		"パスワード",
		"Password",
	}
)

// IsLoggedIn decide si la app ya tiene sesión iniciada: con sesión la
// pantalla principal contiene elementos propios de la app; sin sesión
// aparece el formulario de login
func IsLoggedIn(ctx context.Context, insp *Inspector) (bool, error) {
	src, err := insp.PageSource(ctx)
	if err != nil {
		return false, fmt.Errorf("read screen: %w", err)
	}
	if !strings.Contains(src, "com.instagram.android") {
		return false, nil
	}
	for _, hint := range loginButtonTexts {
		if strings.Contains(src, hint) {
			return false, nil
		}
	}
	return true, nil
}

// Login completa el formulario con las credenciales de la cuenta y
// cierra los popups posteriores (guardar datos, notificaciones). Debe
// llamarse con la pantalla de login ya visible.
func Login(ctx context.Context, ui UIClient, insp *Inspector, account domain.InstagramAccount) error {
	log.Printf("logging in as %s", account.Username)

	userField, err := findLoginField(ctx, insp, loginUsernameIDs, loginFieldHints)
	if err != nil {
		return fmt.Errorf("username field: %w", err)
	}
	if err := ui.Clear(ctx, userField.ID); err != nil {
		log.Printf("clear username field failed (ignored): %v", err)
	}
	if err := ui.SendKeys(ctx, userField.ID, account.Username); err != nil {
		return fmt.Errorf("type username: %w", err)
	}

	passField, err := findLoginField(ctx, insp, loginPasswordIDs, passwordFieldHints)
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}
	if err := ui.SendKeys(ctx, passField.ID, account.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}

	button, err := insp.FindByTextAny(ctx, loginButtonTexts...)
	if err != nil {
		return fmt.Errorf("login button: %w", err)
	}
	if err := ui.Click(ctx, button.ID); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	// El login tarda; después vienen hasta tres popups encadenados
	sleepCtx(ctx, 8*time.Second)
	DismissPopups(ctx, ui, insp, 3)

	ok, err := IsLoggedIn(ctx, insp)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("login as %s did not reach home screen", account.Username)
	}
	log.Printf("logged in as %s", account.Username)
	return nil
}

// DismissPopups cierra hasta rounds popups consecutivos buscando los
// textos de descarte habituales. Se detiene al primer round sin popup.
func DismissPopups(ctx context.Context, ui UIClient, insp *Inspector, rounds int) {
	for i := 0; i < rounds; i++ {
		el, err := insp.FindByTextAny(ctx, PopupDismissTexts...)
		if err != nil {
			return
		}
		if err := ui.Click(ctx, el.ID); err != nil {
			log.Printf("dismiss popup failed (ignored): %v", err)
			return
		}
		sleepCtx(ctx, 2*time.Second)
	}
}

func findLoginField(ctx context.Context, insp *Inspector, ids, hints []string) (*uia2.Element, error) {
	el, err := insp.FindByID(ctx, ids...)
	if err == nil {
		return el, nil
	}
	if !errors.Is(err, uia2.ErrNoSuchElement) {
		return nil, err
	}
	return insp.FindByTextAny(ctx, hints...)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
