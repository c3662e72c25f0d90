// Package jobs provides a database-backed queue for maintenance operations:
// effective-date sweeps and audit log purges requested through the API and
// executed asynchronously by a worker pool.
package jobs

import (
	"time"
)

// JobState represents the lifecycle state of a maintenance job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// Job kinds known to the worker pool.
const (
	KindSweep      = "sweep"
	KindAuditPurge = "audit_purge"
)

// MaintenanceJob is the GORM model for a maintenance job.
type MaintenanceJob struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	Kind         string     `gorm:"column:kind;index:idx_job_kind_state,priority:1;not null"`
	RequestedBy  string     `gorm:"column:requested_by;not null"`
	RequestedAt  time.Time  `gorm:"column:requested_at;not null"`
	State        JobState   `gorm:"column:state;index:idx_job_kind_state,priority:2;index:idx_job_state;not null;default:queued"`
	Message      string     `gorm:"column:message"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	FinishedAt   *time.Time `gorm:"column:finished_at"`
	AttemptCount int        `gorm:"column:attempt_count;default:0"`
	LastError    string     `gorm:"column:last_error"`
	// Nullable so keyless jobs never collide on the unique index.
	IdempotencyKey *string `gorm:"column:idempotency_key;uniqueIndex:idx_job_idemp_key"`
	ItemsAffected  int     `gorm:"column:items_affected"`
	DurationMs     int64   `gorm:"column:duration_ms"`
}

// TableName returns the GORM table name.
func (MaintenanceJob) TableName() string { return "maintenance_jobs" }

// IsTerminal returns true if the job is in a terminal state.
func (j *MaintenanceJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}
