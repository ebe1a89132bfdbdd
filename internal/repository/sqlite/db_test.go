package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/elsanchez/insta-checker/internal/domain"
)

func TestDatabase_CreateAndGetJob(t *testing.T) {
	// Crear DB temporal
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Crear un trabajo
	job := &domain.Job{
		ID:       uuid.NewString(),
		Filename: "targets.csv",
		Status:   domain.JobPending,
		Total:    25,
	}

	if err := db.JobRepo.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	// Obtener el trabajo
	retrieved, err := db.JobRepo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	// Verificar datos
	if retrieved.Filename != job.Filename {
		t.Errorf("expected filename %s, got %s", job.Filename, retrieved.Filename)
	}

	if retrieved.Status != domain.JobPending {
		t.Errorf("expected status pending, got %s", retrieved.Status)
	}

	if retrieved.Total != 25 {
		t.Errorf("expected total 25, got %d", retrieved.Total)
	}

	if retrieved.SubmittedAt.IsZero() {
		t.Error("expected submitted_at to be set on create")
	}

	t.Logf("✅ Job created with ID: %s", job.ID)
}

func TestDatabase_MigrationsApplied(t *testing.T) {
	// Crear DB temporal
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	// Verificar que existe el archivo de base de datos
	dbPath := filepath.Join(tmpDir, "jobs.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file was not created")
	}

	// Verificar que las tablas existen
	ctx := context.Background()

	var count int
	err = db.DB.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='jobs'")
	if err != nil {
		t.Fatalf("failed to query tables: %v", err)
	}

	if count != 1 {
		t.Error("jobs table was not created")
	}

	t.Log("✅ Migrations applied successfully")
}

func TestDatabase_PendingIsFIFO(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Encolar tres trabajos con fechas crecientes
	ids := make([]string, 3)
	for i := range ids {
		job := &domain.Job{
			ID:       uuid.NewString(),
			Filename: "batch.csv",
			Status:   domain.JobPending,
		}
		if err := db.JobRepo.Create(ctx, job); err != nil {
			t.Fatalf("failed to create job %d: %v", i, err)
		}
		ids[i] = job.ID
	}

	pending, err := db.JobRepo.GetPending(ctx)
	if err != nil {
		t.Fatalf("failed to get pending jobs: %v", err)
	}

	if len(pending) != 3 {
		t.Fatalf("expected 3 pending jobs, got %d", len(pending))
	}

	// Marcar el primero como running y verificar que sale de la cola
	if err := db.JobRepo.UpdateStatus(ctx, pending[0].ID, domain.JobRunning, ""); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}

	pending, err = db.JobRepo.GetPending(ctx)
	if err != nil {
		t.Fatalf("failed to get pending jobs: %v", err)
	}

	if len(pending) != 2 {
		t.Errorf("expected 2 pending jobs after dequeue, got %d", len(pending))
	}

	running, err := db.JobRepo.GetRunning(ctx)
	if err != nil {
		t.Fatalf("failed to get running jobs: %v", err)
	}

	if len(running) != 1 {
		t.Fatalf("expected 1 running job, got %d", len(running))
	}

	if running[0].StartedAt == nil {
		t.Error("expected started_at to be set when job goes running")
	}

	t.Log("✅ FIFO queue semantics verified")
}

func TestDatabase_FailRunningOnBoot(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Simular un trabajo que quedó colgado en running
	job := &domain.Job{ID: uuid.NewString(), Filename: "stale.csv", Status: domain.JobRunning}
	if err := db.JobRepo.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	other := &domain.Job{ID: uuid.NewString(), Filename: "fresh.csv", Status: domain.JobPending}
	if err := db.JobRepo.Create(ctx, other); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	n, err := db.JobRepo.FailRunning(ctx, "daemon restarted")
	if err != nil {
		t.Fatalf("failed to fail running jobs: %v", err)
	}

	if n != 1 {
		t.Errorf("expected 1 job failed, got %d", n)
	}

	failed, err := db.JobRepo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if failed.Status != domain.JobFailed {
		t.Errorf("expected status failed, got %s", failed.Status)
	}

	if failed.ErrorMessage != "daemon restarted" {
		t.Errorf("expected error message, got %q", failed.ErrorMessage)
	}

	// El pendiente no se toca
	untouched, err := db.JobRepo.GetByID(ctx, other.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if untouched.Status != domain.JobPending {
		t.Errorf("pending job was altered: %s", untouched.Status)
	}

	t.Log("✅ Stale running jobs cleaned up")
}

func TestDatabase_ProgressUpdates(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	job := &domain.Job{ID: uuid.NewString(), Filename: "batch.csv", Status: domain.JobRunning}
	if err := db.JobRepo.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	if err := db.JobRepo.UpdateProgress(ctx, job.ID, 7, 20, "some_target"); err != nil {
		t.Fatalf("failed to update progress: %v", err)
	}

	got, err := db.JobRepo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if got.Progress != 7 || got.Total != 20 {
		t.Errorf("expected progress 7/20, got %d/%d", got.Progress, got.Total)
	}

	if got.CurrentAccount != "some_target" {
		t.Errorf("expected current account some_target, got %q", got.CurrentAccount)
	}
}

func TestDatabase_UpdateKeepsLifecycleTimestamps(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	job := &domain.Job{
		ID:       uuid.NewString(),
		Filename: "targets.csv",
		Status:   domain.JobPending,
	}
	if err := db.JobRepo.Create(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	// Misma secuencia que el worker: marcar running (fija started_at)
	// y después volcar la copia en memoria, que no lo tiene
	if err := db.JobRepo.UpdateStatus(ctx, job.ID, domain.JobRunning, ""); err != nil {
		t.Fatalf("failed to mark running: %v", err)
	}

	job.Status = domain.JobRunning
	job.InstagramAccount = "checker_account_1"
	job.Total = 40
	if err := db.JobRepo.Update(ctx, job); err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	retrieved, err := db.JobRepo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if retrieved.StartedAt == nil {
		t.Fatal("expected started_at to survive a full-row update")
	}
	if retrieved.InstagramAccount != "checker_account_1" {
		t.Errorf("expected instagram account to be updated, got %q", retrieved.InstagramAccount)
	}
	if retrieved.Total != 40 {
		t.Errorf("expected total 40, got %d", retrieved.Total)
	}

	t.Logf("✅ started_at preserved: %s", retrieved.StartedAt)
}
