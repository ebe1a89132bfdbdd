package domain

import "time"

// JobStatus representa los estados posibles de un trabajo en cola
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job representa una ejecución de lote encolada en el daemon
type Job struct {
	ID               string
	Filename         string
	Status           JobStatus
	Progress         int
	Total            int
	CurrentAccount   string
	InstagramAccount string
	ResultFile       string
	ErrorMessage     string
	SubmittedAt      time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// IsFinished retorna true si el trabajo llegó a un estado final
func (j *Job) IsFinished() bool {
	switch j.Status {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// IsActive retorna true si el trabajo está en ejecución
func (j *Job) IsActive() bool {
	return j.Status == JobRunning
}
