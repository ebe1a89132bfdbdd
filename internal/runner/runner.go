// Package runner orquesta la verificación por lotes: resume, reinicios
// planificados de sesión, persistencia incremental y reporte de
// progreso.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// AccountChecker verifica una cuenta. *checker.Checker lo satisface.
type AccountChecker interface {
	CheckAccount(ctx context.Context, username string) *domain.CheckResult
}

// SessionControl cubre el ciclo de vida de la sesión de automatización
// que el runner gestiona entre cuentas. *device.Manager lo satisface.
type SessionControl interface {
	IsAlive(ctx context.Context) bool
	Recover(ctx context.Context) error
	Restart(ctx context.Context) error
}

// ResultsStore persiste el archivo de resultados completo.
// *results.Store lo satisface.
type ResultsStore interface {
	Load() ([]*domain.CheckResult, error)
	Write(results []*domain.CheckResult) error
}

// Config ajusta el comportamiento del lote
type Config struct {
	// Reinicio planificado de sesión cada BatchSize cuentas. Cero
	// desactiva los reinicios.
	BatchSize int

	// Pausa entre cuentas consecutivas (no después de la última)
	Delay time.Duration

	// Persistir cada SaveEvery resultados nuevos, además del guardado
	// final
	SaveEvery int

	// Resume omite las cuentas con resultado terminal previo
	Resume bool

	// RetryErrors trata errores y load_failed previos como no
	// terminales al hacer resume
	RetryErrors bool
}

func (c *Config) applyDefaults() {
	if c.SaveEvery <= 0 {
		c.SaveEvery = 5
	}
}

// Runner ejecuta un lote de verificaciones contra una sesión
type Runner struct {
	checker    AccountChecker
	session    SessionControl
	store      ResultsStore
	cfg        Config
	onProgress domain.ProgressFunc

	// reemplazable en tests
	sleep func(ctx context.Context, d time.Duration)
}

// New crea un runner. onProgress puede ser nil.
func New(checker AccountChecker, session SessionControl, store ResultsStore, cfg Config, onProgress domain.ProgressFunc) *Runner {
	cfg.applyDefaults()
	return &Runner{
		checker:    checker,
		session:    session,
		store:      store,
		cfg:        cfg,
		onProgress: onProgress,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (r *Runner) report(current, total int, username string, ev domain.Event) {
	if r.onProgress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("progress observer panic (ignored): %v", rec)
		}
	}()
	r.onProgress(current, total, username, ev)
}

// Run procesa la lista de cuentas y retorna el resumen del lote. Los
// resultados parciales quedan persistidos incluso cuando Run retorna
// error o el contexto se cancela; la cancelación se respeta en los
// límites entre cuentas, nunca a mitad de una verificación.
func (r *Runner) Run(ctx context.Context, accounts []string) (*domain.Summary, error) {
	accounts = dedupe(accounts)

	prior, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load previous results: %w", err)
	}
	rows := map[string]*domain.CheckResult{}
	var fileOrder []string
	for _, p := range prior {
		if _, seen := rows[p.Username]; !seen {
			fileOrder = append(fileOrder, p.Username)
		}
		rows[p.Username] = p
	}

	var pending []string
	for _, u := range accounts {
		prev, ok := rows[u]
		if r.cfg.Resume && ok && prev.IsTerminal(r.cfg.RetryErrors) {
			continue
		}
		pending = append(pending, u)
	}
	if r.cfg.Resume && len(accounts) > len(pending) {
		log.Printf("resume: %d of %d accounts already done", len(accounts)-len(pending), len(accounts))
	}

	total := len(pending)
	processed := 0
	persist := func() error {
		return r.store.Write(orderedRows(rows, fileOrder, accounts))
	}

	for i, username := range pending {
		if err := ctx.Err(); err != nil {
			if serr := persist(); serr != nil {
				log.Printf("save on cancel failed: %v", serr)
			}
			return r.summarize(rows, accounts), err
		}

		// Reinicio planificado al inicio de cada lote (salvo el
		// primero); una recuperación reactiva solo si la sesión murió
		if r.cfg.BatchSize > 0 && i > 0 && i%r.cfg.BatchSize == 0 {
			log.Printf("planned session restart before account %d/%d", i+1, total)
			r.report(i+1, total, username, domain.SessionRecovery{})
			if err := r.session.Restart(ctx); err != nil {
				if serr := persist(); serr != nil {
					log.Printf("save on abort failed: %v", serr)
				}
				return r.summarize(rows, accounts), fmt.Errorf("session restart: %w", err)
			}
		} else if !r.session.IsAlive(ctx) {
			log.Printf("session died, recovering before %s", username)
			r.report(i+1, total, username, domain.SessionRecovery{})
			if err := r.session.Recover(ctx); err != nil {
				if serr := persist(); serr != nil {
					log.Printf("save on abort failed: %v", serr)
				}
				return r.summarize(rows, accounts), fmt.Errorf("session recovery: %w", err)
			}
		}

		r.report(i+1, total, username, domain.Starting{})
		result := r.checker.CheckAccount(ctx, username)
		if result == nil {
			result = domain.NewCheckResult(username)
			result.MarkError(fmt.Errorf("checker returned no result"))
		}
		if _, seen := rows[username]; !seen {
			fileOrder = append(fileOrder, username)
		}
		rows[username] = result
		processed++

		r.report(i+1, total, username, resultEvent(result))

		if processed%r.cfg.SaveEvery == 0 {
			if err := persist(); err != nil {
				log.Printf("periodic save failed: %v", err)
			}
		}

		if i < len(pending)-1 {
			r.sleep(ctx, r.cfg.Delay)
		}
	}

	if err := persist(); err != nil {
		return r.summarize(rows, accounts), fmt.Errorf("save results: %w", err)
	}

	summary := r.summarize(rows, accounts)
	r.report(total, total, "", domain.Completed{Summary: *summary})
	return summary, nil
}

func (r *Runner) summarize(rows map[string]*domain.CheckResult, accounts []string) *domain.Summary {
	var s domain.Summary
	for _, u := range accounts {
		if row, ok := rows[u]; ok {
			s.Add(row)
		}
	}
	return &s
}

// resultEvent traduce un resultado terminal a su evento de progreso
func resultEvent(r *domain.CheckResult) domain.Event {
	switch {
	case r.HasWarning:
		return domain.WarningDetected{Details: r.WarningDetails, Screenshot: r.Screenshot}
	case r.Status == domain.StatusNotFound:
		return domain.NotFound{}
	case r.Status == domain.StatusLoadFailed:
		return domain.LoadFailed{}
	case r.IsError():
		return domain.ErrorEvent{Message: r.Status}
	default:
		return domain.NoWarning{}
	}
}

// orderedRows arma la lista a persistir: primero las filas ya
// presentes en el archivo, en su orden original, y después las cuentas
// nuevas en orden de entrada. Una fila por cuenta.
func orderedRows(rows map[string]*domain.CheckResult, fileOrder, accounts []string) []*domain.CheckResult {
	seen := map[string]bool{}
	out := make([]*domain.CheckResult, 0, len(rows))
	for _, order := range [][]string{fileOrder, accounts} {
		for _, u := range order {
			if seen[u] {
				continue
			}
			if row, ok := rows[u]; ok {
				out = append(out, row)
				seen[u] = true
			}
		}
	}
	return out
}

func dedupe(accounts []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(accounts))
	for _, u := range accounts {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
