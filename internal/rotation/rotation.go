// Package rotation gestiona el pool de cuentas de Instagram propias y
// sus cupos diarios de follows. Las estadísticas se persisten en JSON
// para sobrevivir reinicios del daemon.
package rotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// ErrAllAccountsExhausted indica que ninguna cuenta del pool tiene
// cupo disponible hoy
var ErrAllAccountsExhausted = errors.New("all accounts exhausted for today")

// DefaultMaxFollowsPerDay es el cupo por cuenta cuando no se configura
// otro
const DefaultMaxFollowsPerDay = 60

// LoadAccounts lee el pool de cuentas desde el entorno. Formatos:
// INSTAGRAM_ACCOUNTS con un array JSON de {username, password}, o el
// par INSTAGRAM_USERNAME / INSTAGRAM_PASSWORD para una sola cuenta.
func LoadAccounts() ([]domain.InstagramAccount, error) {
	if raw := os.Getenv("INSTAGRAM_ACCOUNTS"); raw != "" {
		var accounts []domain.InstagramAccount
		if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
			return nil, fmt.Errorf("parse INSTAGRAM_ACCOUNTS: %w", err)
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("INSTAGRAM_ACCOUNTS is empty")
		}
		for i, a := range accounts {
			if a.Username == "" || a.Password == "" {
				return nil, fmt.Errorf("INSTAGRAM_ACCOUNTS[%d]: username and password are required", i)
			}
		}
		return accounts, nil
	}

	user := os.Getenv("INSTAGRAM_USERNAME")
	pass := os.Getenv("INSTAGRAM_PASSWORD")
	if user == "" || pass == "" {
		return nil, fmt.Errorf("no accounts configured: set INSTAGRAM_ACCOUNTS or INSTAGRAM_USERNAME/INSTAGRAM_PASSWORD")
	}
	return []domain.InstagramAccount{{Username: user, Password: pass}}, nil
}

// Rotator asigna cuentas del pool respetando el cupo diario. Seguro
// para uso concurrente; el archivo de stats se relee antes de cada
// mutación para no pisar cambios externos.
type Rotator struct {
	mu        sync.Mutex
	accounts  []domain.InstagramAccount
	statsPath string
	maxPerDay int

	// reemplazable en tests
	now func() time.Time
}

// New crea un rotator. maxPerDay cero usa el default.
func New(accounts []domain.InstagramAccount, statsPath string, maxPerDay int) *Rotator {
	if maxPerDay <= 0 {
		maxPerDay = DefaultMaxFollowsPerDay
	}
	return &Rotator{
		accounts:  accounts,
		statsPath: statsPath,
		maxPerDay: maxPerDay,
		now:       time.Now,
	}
}

// Accounts retorna la lista configurada (solo usernames importan para
// el reporte; nunca exponer passwords en logs ni respuestas)
func (r *Rotator) Accounts() []domain.InstagramAccount {
	return r.accounts
}

func (r *Rotator) today() string {
	return r.now().Format("2006-01-02")
}

func (r *Rotator) loadStats() (map[string]*domain.AccountStats, error) {
	stats := map[string]*domain.AccountStats{}
	data, err := os.ReadFile(r.statsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, fmt.Errorf("read account stats: %w", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parse account stats %s: %w", r.statsPath, err)
	}
	return stats, nil
}

func (r *Rotator) saveStats(stats map[string]*domain.AccountStats) error {
	if dir := filepath.Dir(r.statsPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create stats dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal account stats: %w", err)
	}
	if err := os.WriteFile(r.statsPath, data, 0600); err != nil {
		return fmt.Errorf("write account stats: %w", err)
	}
	return nil
}

// resetStale pone a cero los contadores cuya fecha no es hoy.
// Retorna true si algo cambió.
func (r *Rotator) resetStale(stats map[string]*domain.AccountStats) bool {
	today := r.today()
	changed := false
	for _, s := range stats {
		if s.LastResetDate != today {
			s.TodayFollows = 0
			s.LastResetDate = today
			changed = true
		}
	}
	return changed
}

// Available retorna la primera cuenta del pool con cupo disponible
// hoy, junto con su uso actual. Si ninguna tiene cupo retorna
// ErrAllAccountsExhausted.
func (r *Rotator) Available() (domain.InstagramAccount, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.loadStats()
	if err != nil {
		return domain.InstagramAccount{}, 0, err
	}
	if r.resetStale(stats) {
		if err := r.saveStats(stats); err != nil {
			return domain.InstagramAccount{}, 0, err
		}
	}

	for _, a := range r.accounts {
		s := stats[a.Username]
		used := 0
		if s != nil {
			used = s.TodayFollows
		}
		if used < r.maxPerDay {
			return a, used, nil
		}
	}
	return domain.InstagramAccount{}, 0, ErrAllAccountsExhausted
}

// RecordFollow incrementa el contador diario de la cuenta. Se llama
// una vez por follow realmente ejecutado.
func (r *Rotator) RecordFollow(username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.loadStats()
	if err != nil {
		return err
	}
	r.resetStale(stats)

	s := stats[username]
	if s == nil {
		s = &domain.AccountStats{LastResetDate: r.today()}
		stats[username] = s
	}
	s.TodayFollows++
	now := r.now()
	s.LastFollowAt = &now

	return r.saveStats(stats)
}

// ResetIfNewDay fuerza el chequeo de cambio de día y persiste los
// contadores a cero si corresponde. Lo invoca el cron de medianoche.
func (r *Rotator) ResetIfNewDay() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.loadStats()
	if err != nil {
		return err
	}
	if r.resetStale(stats) {
		return r.saveStats(stats)
	}
	return nil
}

// Usage retorna el uso de hoy por username, para el endpoint de estado
func (r *Rotator) Usage() (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, err := r.loadStats()
	if err != nil {
		return nil, err
	}
	r.resetStale(stats)

	usage := make(map[string]int, len(r.accounts))
	for _, a := range r.accounts {
		if s := stats[a.Username]; s != nil {
			usage[a.Username] = s.TodayFollows
		} else {
			usage[a.Username] = 0
		}
	}
	return usage, nil
}

// MaxPerDay retorna el cupo configurado
func (r *Rotator) MaxPerDay() int { return r.maxPerDay }
