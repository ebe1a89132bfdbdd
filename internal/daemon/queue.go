package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/elsanchez/insta-checker/internal/domain"
	"github.com/elsanchez/insta-checker/internal/repository"
	"github.com/elsanchez/insta-checker/internal/results"
	"github.com/elsanchez/insta-checker/internal/rotation"
)

// JobExecutor ejecuta el lote de un trabajo contra el dispositivo.
// La implementación real abre la sesión, hace login con la cuenta
// asignada y corre el runner; los tests inyectan un fake.
type JobExecutor interface {
	Execute(ctx context.Context, job *domain.Job, account domain.InstagramAccount,
		accounts []string, resultPath string, onProgress domain.ProgressFunc) (*domain.Summary, error)
}

// LogRing guarda las últimas líneas de log del worker para exponerlas
// en el endpoint de estado
type LogRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogRing crea un ring de tamaño max
func NewLogRing(max int) *LogRing {
	if max <= 0 {
		max = 100
	}
	return &LogRing{max: max}
}

// Add registra una línea, descartando la más vieja si el ring está
// lleno
func (l *LogRing) Add(format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.max {
		l.lines = l.lines[len(l.lines)-l.max:]
	}
}

// Lines retorna una copia de las líneas actuales
func (l *LogRing) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// QueueManager gestiona la cola de trabajos con un único worker. El
// dispositivo no admite más de un lote a la vez, por eso no hay pool.
type QueueManager struct {
	jobRepo  repository.JobRepository
	rotator  *rotation.Rotator
	executor JobExecutor
	paths    Paths
	logs     *LogRing

	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	pollInterval time.Duration

	mu            sync.Mutex
	currentJob    string
	currentCancel context.CancelFunc

	// reemplazable en tests
	parseAccounts func(path string) ([]string, error)
}

// NewQueueManager crea un nuevo gestor de cola
func NewQueueManager(jobRepo repository.JobRepository, rotator *rotation.Rotator,
	executor JobExecutor, paths Paths, logs *LogRing) *QueueManager {
	ctx, cancel := context.WithCancel(context.Background())
	if logs == nil {
		logs = NewLogRing(100)
	}
	return &QueueManager{
		jobRepo:       jobRepo,
		rotator:       rotator,
		executor:      executor,
		paths:         paths,
		logs:          logs,
		ctx:           ctx,
		cancel:        cancel,
		pollInterval:  2 * time.Second,
		parseAccounts: results.ParseAccounts,
	}
}

// Logs retorna el ring de logs del worker
func (q *QueueManager) Logs() *LogRing { return q.logs }

// Start inicia el worker
func (q *QueueManager) Start() {
	log.Println("Queue manager started (single worker)")
	q.wg.Add(1)
	go q.processLoop()
}

// Stop detiene el worker y espera a que el trabajo en curso termine de
// cancelarse
func (q *QueueManager) Stop() {
	log.Println("Queue manager stopping...")
	q.cancel()
	q.wg.Wait()
	log.Println("Queue manager stopped")
}

// CurrentJob retorna el ID del trabajo en ejecución, o vacío
func (q *QueueManager) CurrentJob() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentJob
}

// CancelJob cancela un trabajo. Si está en ejecución dispara la
// cancelación cooperativa; si está pendiente lo marca cancelado en la
// cola. Retorna error si el trabajo no existe o ya terminó.
func (q *QueueManager) CancelJob(ctx context.Context, id string) error {
	q.mu.Lock()
	if q.currentJob == id && q.currentCancel != nil {
		q.currentCancel()
		q.mu.Unlock()
		q.logs.Add("cancel requested for running job %s", id)
		return nil
	}
	q.mu.Unlock()

	job, err := q.jobRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.IsFinished() {
		return fmt.Errorf("job %s already finished (%s)", id, job.Status)
	}
	if job.Status != domain.JobPending {
		return fmt.Errorf("job %s is not cancellable (%s)", id, job.Status)
	}
	if err := q.jobRepo.UpdateStatus(ctx, id, domain.JobCancelled, "cancelled while queued"); err != nil {
		return err
	}
	q.logs.Add("queued job %s cancelled", id)
	return nil
}

// StopCurrent cancela el trabajo en ejecución, si hay uno
func (q *QueueManager) StopCurrent() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.currentJob == "" || q.currentCancel == nil {
		return "", false
	}
	q.currentCancel()
	return q.currentJob, true
}

// processLoop busca trabajos pendientes y los procesa de a uno
func (q *QueueManager) processLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	// Procesar inmediatamente al inicio
	q.runNext()

	for {
		select {
		case <-q.ctx.Done():
			log.Println("Process loop shutting down")
			return
		case <-ticker.C:
			q.runNext()
		}
	}
}

// runNext toma el trabajo pendiente más antiguo y lo ejecuta hasta
// terminar. Serializado: un solo trabajo toca el dispositivo a la vez.
func (q *QueueManager) runNext() {
	pending, err := q.jobRepo.GetPending(q.ctx)
	if err != nil {
		log.Printf("Error getting pending jobs: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	q.processJob(pending[0])
}

func (q *QueueManager) processJob(job *domain.Job) {
	jobCtx, jobCancel := context.WithCancel(q.ctx)
	defer jobCancel()

	q.mu.Lock()
	q.currentJob = job.ID
	q.currentCancel = jobCancel
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.currentJob = ""
		q.currentCancel = nil
		q.mu.Unlock()
	}()

	q.logs.Add("job %s started: %s", job.ID, job.Filename)

	if err := q.jobRepo.UpdateStatus(q.ctx, job.ID, domain.JobRunning, ""); err != nil {
		log.Printf("Failed to mark job %s running: %v", job.ID, err)
		return
	}

	uploadPath, err := q.paths.ResolveUpload(job.Filename)
	if err != nil {
		q.failJob(job.ID, fmt.Errorf("resolve upload: %w", err))
		return
	}

	accounts, err := q.parseAccounts(uploadPath)
	if err != nil {
		q.failJob(job.ID, fmt.Errorf("parse accounts: %w", err))
		return
	}

	// Cuenta del pool antes de tocar el dispositivo: sin cupo no se
	// abre sesión
	account, used, err := q.rotator.Available()
	if err != nil {
		if errors.Is(err, rotation.ErrAllAccountsExhausted) {
			q.failJob(job.ID, err)
			return
		}
		q.failJob(job.ID, fmt.Errorf("pick account: %w", err))
		return
	}
	q.logs.Add("job %s using account %s (%d/%d follows today)",
		job.ID, account.Username, used, q.rotator.MaxPerDay())

	job.InstagramAccount = account.Username
	job.Total = len(accounts)
	job.Status = domain.JobRunning
	if err := q.jobRepo.Update(q.ctx, job); err != nil {
		log.Printf("Failed to update job %s: %v", job.ID, err)
	}

	resultName := ResultNameFor(job.Filename)
	resultPath, err := q.paths.ResolveResult(resultName)
	if err != nil {
		q.failJob(job.ID, fmt.Errorf("resolve result path: %w", err))
		return
	}

	onProgress := func(current, total int, username string, ev domain.Event) {
		if username != "" {
			if err := q.jobRepo.UpdateProgress(q.ctx, job.ID, current, total, username); err != nil {
				log.Printf("Failed to update progress for job %s: %v", job.ID, err)
			}
			q.logs.Add("[%d/%d] %s: %s", current, total, username, ev.Phase())
		}
		// Un follow consumió cupo solo cuando llegó a crearse; la
		// advertencia lo bloquea antes
		if _, ok := ev.(domain.NoWarning); ok {
			if err := q.rotator.RecordFollow(account.Username); err != nil {
				log.Printf("Failed to record follow for %s: %v", account.Username, err)
			}
		}
	}

	summary, err := q.executor.Execute(jobCtx, job, account, accounts, resultPath, onProgress)

	switch {
	case jobCtx.Err() != nil && q.ctx.Err() == nil:
		// Cancelación del trabajo, no apagado del daemon
		q.jobRepo.UpdateStatus(q.ctx, job.ID, domain.JobCancelled, "cancelled by user")
		q.setResultFile(job.ID, resultPath)
		q.logs.Add("job %s cancelled", job.ID)
	case q.ctx.Err() != nil:
		q.jobRepo.UpdateStatus(context.Background(), job.ID, domain.JobFailed, "daemon shutting down")
		q.logs.Add("job %s aborted by shutdown", job.ID)
	case err != nil:
		q.failJob(job.ID, err)
	default:
		q.setResultFile(job.ID, resultPath)
		q.jobRepo.UpdateStatus(q.ctx, job.ID, domain.JobCompleted, "")
		q.logs.Add("job %s completed: %d warnings, %d clean, %d not found, %d failed, %d errors",
			job.ID, summary.Warnings, summary.Normal, summary.NotFound, summary.LoadFailed, summary.Errors)
	}
}

func (q *QueueManager) failJob(id string, err error) {
	log.Printf("Job %s failed: %v", id, err)
	q.logs.Add("job %s failed: %v", id, err)
	if uerr := q.jobRepo.UpdateStatus(q.ctx, id, domain.JobFailed, err.Error()); uerr != nil {
		log.Printf("Failed to mark job %s failed: %v", id, uerr)
	}
}

func (q *QueueManager) setResultFile(id, resultPath string) {
	job, err := q.jobRepo.GetByID(q.ctx, id)
	if err != nil {
		log.Printf("Failed to load job %s: %v", id, err)
		return
	}
	job.ResultFile = resultPath
	if err := q.jobRepo.Update(q.ctx, job); err != nil {
		log.Printf("Failed to set result file for job %s: %v", id, err)
	}
}

// GetStats retorna estadísticas de la cola
func (q *QueueManager) GetStats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	for _, status := range []domain.JobStatus{
		domain.JobPending, domain.JobRunning, domain.JobCompleted,
		domain.JobFailed, domain.JobCancelled,
	} {
		count, err := q.jobRepo.CountByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		stats[string(status)] = count
	}

	return stats, nil
}
