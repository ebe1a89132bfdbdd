package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/elsanchez/insta-checker/internal/domain"
	"github.com/elsanchez/insta-checker/internal/repository"
)

// JobRepository implementa repository.JobRepository usando SQLite
type JobRepository struct {
	db *sqlx.DB
}

// Compiletime check: asegura que implementa la interfaz
var _ repository.JobRepository = (*JobRepository)(nil)

// NewJobRepository crea un nuevo repositorio de trabajos
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// jobRow mapea la tabla SQL a struct Go
type jobRow struct {
	ID               string         `db:"id"`
	Filename         string         `db:"filename"`
	Status           string         `db:"status"`
	Progress         int            `db:"progress"`
	Total            int            `db:"total"`
	CurrentAccount   sql.NullString `db:"current_account"`
	InstagramAccount sql.NullString `db:"instagram_account"`
	ResultFile       sql.NullString `db:"result_file"`
	ErrorMessage     sql.NullString `db:"error_message"`
	SubmittedAt      int64          `db:"submitted_at"`
	StartedAt        sql.NullInt64  `db:"started_at"`
	CompletedAt      sql.NullInt64  `db:"completed_at"`
}

// Create inserta un nuevo trabajo
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}

	query := `
		INSERT INTO jobs (id, filename, status, progress, total, current_account,
		                  instagram_account, result_file, error_message, submitted_at)
		VALUES (:id, :filename, :status, :progress, :total, :current_account,
		        :instagram_account, :result_file, :error_message, :submitted_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                job.ID,
		"filename":          job.Filename,
		"status":            string(job.Status),
		"progress":          job.Progress,
		"total":             job.Total,
		"current_account":   job.CurrentAccount,
		"instagram_account": job.InstagramAccount,
		"result_file":       job.ResultFile,
		"error_message":     job.ErrorMessage,
		"submitted_at":      job.SubmittedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID obtiene un trabajo por ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var row jobRow

	query := `SELECT * FROM jobs WHERE id = ?`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", repository.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	return rowToDomain(&row), nil
}

// Update actualiza un trabajo completo
func (r *JobRepository) Update(ctx context.Context, job *domain.Job) error {
	var startedAt, completedAt interface{}
	if job.StartedAt != nil {
		startedAt = job.StartedAt.Unix()
	}
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.Unix()
	}

	// started_at y completed_at los fija UpdateStatus; un Update con la
	// copia en memoria desactualizada no debe borrarlos
	query := `
		UPDATE jobs
		SET filename = :filename, status = :status, progress = :progress,
		    total = :total, current_account = :current_account,
		    instagram_account = :instagram_account, result_file = :result_file,
		    error_message = :error_message,
		    started_at = COALESCE(:started_at, started_at),
		    completed_at = COALESCE(:completed_at, completed_at)
		WHERE id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                job.ID,
		"filename":          job.Filename,
		"status":            string(job.Status),
		"progress":          job.Progress,
		"total":             job.Total,
		"current_account":   job.CurrentAccount,
		"instagram_account": job.InstagramAccount,
		"result_file":       job.ResultFile,
		"error_message":     job.ErrorMessage,
		"started_at":        startedAt,
		"completed_at":      completedAt,
	})
	return err
}

// Delete elimina un trabajo
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM jobs WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// GetPending obtiene los trabajos pendientes en orden de llegada
func (r *JobRepository) GetPending(ctx context.Context) ([]*domain.Job, error) {
	return r.GetByStatus(ctx, domain.JobPending)
}

// GetRunning obtiene los trabajos en ejecución
func (r *JobRepository) GetRunning(ctx context.Context) ([]*domain.Job, error) {
	return r.GetByStatus(ctx, domain.JobRunning)
}

// GetRecent obtiene los trabajos recientes
func (r *JobRepository) GetRecent(ctx context.Context, limit int) ([]*domain.Job, error) {
	var rows []jobRow

	query := `
		SELECT * FROM jobs
		ORDER BY submitted_at DESC
		LIMIT ?
	`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("get recent jobs: %w", err)
	}

	return rowsToDomain(rows), nil
}

// GetByStatus obtiene trabajos por status, FIFO por fecha de envío
func (r *JobRepository) GetByStatus(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error) {
	var rows []jobRow

	query := `SELECT * FROM jobs WHERE status = ? ORDER BY submitted_at ASC, id ASC`
	if err := r.db.SelectContext(ctx, &rows, query, string(status)); err != nil {
		return nil, fmt.Errorf("get jobs by status: %w", err)
	}

	return rowsToDomain(rows), nil
}

// UpdateStatus actualiza solo el status y mensaje de error. Los
// estados finales fijan completed_at; running fija started_at.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	now := time.Now().Unix()

	var query string
	args := []interface{}{string(status), errMsg}
	switch status {
	case domain.JobRunning:
		query = `UPDATE jobs SET status = ?, error_message = ?, started_at = ? WHERE id = ?`
		args = append(args, now, id)
	case domain.JobCompleted, domain.JobFailed, domain.JobCancelled:
		query = `UPDATE jobs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`
		args = append(args, now, id)
	default:
		query = `UPDATE jobs SET status = ?, error_message = ? WHERE id = ?`
		args = append(args, id)
	}

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateProgress actualiza el avance del trabajo en curso
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress, total int, currentAccount string) error {
	query := `UPDATE jobs SET progress = ?, total = ?, current_account = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, progress, total, currentAccount, id)
	return err
}

// FailRunning marca como fallidos los trabajos en running. Se usa al
// arrancar el daemon para limpiar restos de un apagado abrupto.
func (r *JobRepository) FailRunning(ctx context.Context, reason string) (int64, error) {
	query := `
		UPDATE jobs
		SET status = ?, error_message = ?, completed_at = ?
		WHERE status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.JobFailed), reason, time.Now().Unix(), string(domain.JobRunning))
	if err != nil {
		return 0, fmt.Errorf("fail running jobs: %w", err)
	}
	return result.RowsAffected()
}

// CountByStatus cuenta trabajos por status
func (r *JobRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs WHERE status = ?`
	err := r.db.GetContext(ctx, &count, query, string(status))
	return count, err
}

// CountTotal cuenta todos los trabajos
func (r *JobRepository) CountTotal(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM jobs`
	err := r.db.GetContext(ctx, &count, query)
	return count, err
}

// Helper: conversión row → domain
func rowToDomain(row *jobRow) *domain.Job {
	job := &domain.Job{
		ID:               row.ID,
		Filename:         row.Filename,
		Status:           domain.JobStatus(row.Status),
		Progress:         row.Progress,
		Total:            row.Total,
		CurrentAccount:   row.CurrentAccount.String,
		InstagramAccount: row.InstagramAccount.String,
		ResultFile:       row.ResultFile.String,
		ErrorMessage:     row.ErrorMessage.String,
		SubmittedAt:      time.Unix(row.SubmittedAt, 0),
	}

	if row.StartedAt.Valid {
		t := time.Unix(row.StartedAt.Int64, 0)
		job.StartedAt = &t
	}
	if row.CompletedAt.Valid {
		t := time.Unix(row.CompletedAt.Int64, 0)
		job.CompletedAt = &t
	}

	return job
}

// Helper: conversión múltiples rows → domain
func rowsToDomain(rows []jobRow) []*domain.Job {
	jobs := make([]*domain.Job, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, rowToDomain(&row))
	}
	return jobs
}
