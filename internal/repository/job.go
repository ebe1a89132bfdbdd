package repository

import (
	"context"
	"errors"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// ErrJobNotFound lo retorna GetByID para IDs desconocidos; los
// handlers lo traducen a 404
var ErrJobNotFound = errors.New("job not found")

// JobRepository define las operaciones sobre trabajos de verificación
type JobRepository interface {
	// CRUD básico
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	Delete(ctx context.Context, id string) error

	// Queries especializadas
	GetPending(ctx context.Context) ([]*domain.Job, error)
	GetRunning(ctx context.Context) ([]*domain.Job, error)
	GetRecent(ctx context.Context, limit int) ([]*domain.Job, error)
	GetByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error)

	// Updates parciales
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error
	UpdateProgress(ctx context.Context, id string, progress, total int, currentAccount string) error

	// FailRunning marca como fallidos los trabajos que quedaron en
	// running tras un apagado abrupto. Retorna cuántos marcó.
	FailRunning(ctx context.Context, reason string) (int64, error)

	// Estadísticas
	CountByStatus(ctx context.Context, status domain.JobStatus) (int, error)
	CountTotal(ctx context.Context) (int, error)
}
