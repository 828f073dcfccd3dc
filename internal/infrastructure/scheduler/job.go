package scheduler

import (
	"time"

	appfinance "github.com/crechebooks/backend/internal/application/finance"
	"github.com/google/uuid"
)

// JobStatus represents the status of one tenant's escalation job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusSkipped JobStatus = "SKIPPED"
	JobStatusFailed  JobStatus = "FAILED"
)

// TenantJob is the escalation of one tenant within a sweep
type TenantJob struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *appfinance.EscalationResult
}

// NewTenantJob creates a pending job
func NewTenantJob(tenantID uuid.UUID) *TenantJob {
	return &TenantJob{
		ID:       uuid.New(),
		TenantID: tenantID,
		Status:   JobStatusPending,
	}
}

// Start marks the job as running
func (j *TenantJob) Start(at time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &at
	j.Error = ""
}

// Complete marks the job as successful
func (j *TenantJob) Complete(at time.Time, result *appfinance.EscalationResult) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &at
	j.Result = result
}

// Skip marks a job whose tenant was being escalated elsewhere
func (j *TenantJob) Skip(at time.Time, reason string) {
	j.Status = JobStatusSkipped
	j.CompletedAt = &at
	j.Error = reason
}

// Fail marks the job as failed
func (j *TenantJob) Fail(at time.Time, err string) {
	j.Status = JobStatusFailed
	j.CompletedAt = &at
	j.Error = err
}

// Duration returns how long the job ran, or zero if it has not finished
func (j *TenantJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}
