package queue

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when no queue is specified on enqueue or worker.
const DefaultQueueName = "default"

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is a single unit of work in a named queue.
//
// A job is durably persisted on enqueue and leased exclusively to one worker
// while processing. Delivery is at-least-once: a job whose lease expires
// before acknowledgement becomes claimable again, so handlers must tolerate
// duplicate processing.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	Name        string     `json:"name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      JobStatus  `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DeadJob holds a job that exhausted its retry budget or failed permanently.
// Dead jobs are never processed automatically; they stay inspectable until an
// operator requeues or deletes them.
type DeadJob struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	Queue      string    `json:"queue"`
	Name       string    `json:"name"`
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func sortDeadJobs(dead []DeadJob) {
	slices.SortFunc(dead, func(a, b DeadJob) int {
		return a.FailedAt.Compare(b.FailedAt)
	})
}
