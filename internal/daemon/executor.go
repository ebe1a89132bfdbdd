package daemon

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/elsanchez/insta-checker/internal/checker"
	"github.com/elsanchez/insta-checker/internal/device"
	"github.com/elsanchez/insta-checker/internal/domain"
	"github.com/elsanchez/insta-checker/internal/results"
	"github.com/elsanchez/insta-checker/internal/runner"
)

// ExecutorConfig agrupa la configuración de los tres niveles que el
// executor arma por trabajo
type ExecutorConfig struct {
	Device  device.Config
	Checker checker.Config
	Runner  runner.Config
}

// DeviceExecutor es el JobExecutor real: abre sesión contra el
// dispositivo, hace login con la cuenta asignada y corre el lote
type DeviceExecutor struct {
	cfg ExecutorConfig
}

// NewDeviceExecutor crea el executor
func NewDeviceExecutor(cfg ExecutorConfig) *DeviceExecutor {
	return &DeviceExecutor{cfg: cfg}
}

var _ JobExecutor = (*DeviceExecutor)(nil)

// Execute corre el lote completo de un trabajo. La sesión es por
// trabajo: se abre al empezar y se cierra al terminar, pase lo que
// pase.
func (e *DeviceExecutor) Execute(ctx context.Context, job *domain.Job,
	account domain.InstagramAccount, accounts []string, resultPath string,
	onProgress domain.ProgressFunc) (*domain.Summary, error) {

	mgr := device.NewManager(e.cfg.Device)
	handle, err := mgr.OpenHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("open device session: %w", err)
	}
	defer func() {
		// El contexto del trabajo puede estar ya cancelado
		if cerr := handle.Close(context.Background()); cerr != nil {
			log.Printf("close session for job %s: %v", job.ID, cerr)
		}
	}()

	insp := checker.NewInspector(handle)
	loggedIn, err := checker.IsLoggedIn(ctx, insp)
	if err != nil {
		return nil, fmt.Errorf("check login state: %w", err)
	}
	if !loggedIn {
		if err := checker.Login(ctx, handle, insp, account); err != nil {
			return nil, fmt.Errorf("login as %s: %w", account.Username, err)
		}
	}

	if onProgress == nil {
		onProgress = func(int, int, string, domain.Event) {}
	}
	bridge := &phaseBridge{fn: onProgress}
	chk := checker.New(handle, handle, e.cfg.Checker, bridge.phase)
	store := results.NewStore(resultPath)
	run := runner.New(chk, handle, store, e.cfg.Runner, bridge.track)

	return run.Run(ctx, accounts)
}

// phaseBridge reexpone las fases intermedias del checker con el índice
// que lleva el runner. Starting y los eventos terminales ya los emite
// el runner; duplicarlos descuadraría a los observadores.
type phaseBridge struct {
	fn domain.ProgressFunc

	mu       sync.Mutex
	current  int
	total    int
	username string
}

func (b *phaseBridge) track(current, total int, username string, ev domain.Event) {
	b.mu.Lock()
	b.current, b.total, b.username = current, total, username
	b.mu.Unlock()
	b.fn(current, total, username, ev)
}

func (b *phaseBridge) phase(ev domain.Event) {
	switch ev.(type) {
	case domain.Navigating, domain.ClickingFollow:
	default:
		return
	}
	b.mu.Lock()
	current, total, username := b.current, b.total, b.username
	b.mu.Unlock()
	b.fn(current, total, username, ev)
}
