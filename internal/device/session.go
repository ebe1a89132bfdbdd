package device

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/elsanchez/insta-checker/internal/uia2"
)

// Paquete y activity de la app automatizada
const (
	InstagramPackage  = "com.instagram.android"
	InstagramActivity = "com.instagram.mainactivity.LauncherActivity"
)

// Config describe cómo abrir sesiones contra el backend de automatización
type Config struct {
	AppiumURL  string
	DeviceName string
	ADBPath    string

	// Reintentos de conexión inicial
	MaxRetries int
	RetryDelay time.Duration

	// Pausa tras el teardown planificado, antes de reabrir
	SettleDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 3 * time.Second
	}
}

// Session es una conexión viva al backend controlando un dispositivo.
// Embebe el cliente uia2; el ADB cubre intents y vuelta a home.
type Session struct {
	*uia2.Client
	ADB *ADB

	// Generation se incrementa en cada recover/restart; útil en logs
	Generation int

	cfg Config
}

// GoHome vuelve a la pantalla principal de la app. Es un paso de
// higiene entre cuentas: los errores se tragan.
func (s *Session) GoHome(ctx context.Context) {
	if err := s.ADB.StartActivity(ctx, InstagramPackage, InstagramActivity); err != nil {
		log.Printf("go home failed (ignored): %v", err)
	}
	sleep(ctx, 2*time.Second)
}

// OpenProfileDeepLink navega directo al perfil vía intent, sin pasar
// por la búsqueda de la app
func (s *Session) OpenProfileDeepLink(ctx context.Context, username string) error {
	url := "https://instagram.com/" + username
	return s.ADB.OpenDeepLink(ctx, url, InstagramPackage)
}

// IsAlive sondea la sesión. Nunca retorna error: si no se puede
// consultar, la sesión se considera muerta. /status solo cubre la
// salud del servidor y responde 200 con la sesión caída, así que el
// sondeo tiene que pasar además por una ruta de sesión.
func (s *Session) IsAlive(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.Status(probe); err != nil {
		return false
	}
	_, err := s.Source(probe)
	return err == nil
}

// Manager abre, recupera y reinicia sesiones
type Manager struct {
	cfg Config
	adb *ADB
}

// NewManager crea un manager de sesiones
func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg: cfg,
		adb: NewADB(cfg.ADBPath, cfg.DeviceName),
	}
}

// ADB expone el wrapper adb del manager
func (m *Manager) ADB() *ADB { return m.adb }

// Open establece una sesión con reintentos y backoff fijo.
// Agotar los reintentos es fatal para el caller.
func (m *Manager) Open(ctx context.Context) (*Session, error) {
	caps := uia2.Capabilities{
		DeviceName:            m.cfg.DeviceName,
		AppPackage:            InstagramPackage,
		AppActivity:           InstagramActivity,
		NoReset:               true,
		AutoGrantPermissions:  true,
		NewCommandTimeoutSecs: 600,
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		client := uia2.NewClient(m.cfg.AppiumURL)
		if err := client.CreateSession(ctx, caps); err != nil {
			lastErr = err
			log.Printf("appium connect failed (attempt %d/%d): %v", attempt, m.cfg.MaxRetries, err)
			if attempt < m.cfg.MaxRetries {
				sleep(ctx, m.cfg.RetryDelay)
			}
			continue
		}
		log.Printf("appium session opened: %s (device %s)", client.SessionID(), m.cfg.DeviceName)
		return &Session{Client: client, ADB: m.adb, cfg: m.cfg}, nil
	}
	return nil, fmt.Errorf("open session after %d attempts: %w", m.cfg.MaxRetries, lastErr)
}

// Recover cierra la sesión muerta (best-effort) y abre una nueva.
// El fallo se propaga: el caller decide si aborta el lote.
func (m *Manager) Recover(ctx context.Context, old *Session) (*Session, error) {
	log.Println("recovering session...")
	if old != nil {
		if err := old.DeleteSession(ctx); err != nil {
			log.Printf("teardown during recovery failed (ignored): %v", err)
		}
	}
	s, err := m.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("recover session: %w", err)
	}
	if old != nil {
		s.Generation = old.Generation + 1
	}
	log.Println("session recovered")
	return s, nil
}

// Restart hace el reinicio planificado de la sesión. No responde a un
// fallo sino al crecimiento de memoria del backend tras muchas
// interacciones; por eso un error aquí sí es fatal para el lote.
func (m *Manager) Restart(ctx context.Context, old *Session) (*Session, error) {
	log.Println("restarting session (planned)...")
	if old != nil {
		if err := old.DeleteSession(ctx); err != nil {
			log.Printf("teardown during restart failed (ignored): %v", err)
		}
		sleep(ctx, m.cfg.SettleDelay)
	}
	s, err := m.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("restart session: %w", err)
	}
	if old != nil {
		s.Generation = old.Generation + 1
	}
	s.GoHome(ctx)
	log.Println("session restarted")
	return s, nil
}

// sleep espera respetando la cancelación del contexto
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
