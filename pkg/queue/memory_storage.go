package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements the queue storage interfaces in memory. It is
// intended for tests and local development; production deployments use
// RedisStorage.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	dead map[uuid.UUID]*DeadJob

	reaper *time.Ticker
	done   chan struct{}
}

var (
	_ EnqueuerStorage   = (*MemoryStorage)(nil)
	_ WorkerStorage     = (*MemoryStorage)(nil)
	_ DeadLetterStorage = (*MemoryStorage)(nil)
)

// NewMemoryStorage creates an in-memory queue storage. A background reaper
// returns jobs with expired leases to pending so work claimed by a crashed
// worker is eventually redelivered.
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		jobs: make(map[uuid.UUID]*Job),
		dead: make(map[uuid.UUID]*DeadJob),
		done: make(chan struct{}),
	}
	ms.reaper = time.NewTicker(time.Second)
	go ms.reapLoop()
	return ms
}

// Close stops the lease reaper.
func (ms *MemoryStorage) Close() error {
	close(ms.done)
	ms.reaper.Stop()
	return nil
}

// CreateJob implements EnqueuerStorage.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp := *job
	ms.jobs[job.ID] = &cp
	return nil
}

// ClaimJob implements WorkerStorage. The earliest due pending job in one of
// the requested queues is leased to the worker.
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job
	for _, job := range ms.jobs {
		if job.Status != JobStatusPending {
			continue
		}
		if !slices.Contains(queues, job.Queue) {
			continue
		}
		if job.ScheduledAt.After(now) {
			continue
		}
		if best == nil || job.ScheduledAt.Before(best.ScheduledAt) {
			best = job
		}
	}
	if best == nil {
		return nil, ErrNoJobToClaim
	}

	until := now.Add(lease)
	best.Status = JobStatusProcessing
	best.LockedUntil = &until
	best.LockedBy = &workerID

	cp := *best
	return &cp, nil
}

// CompleteJob implements WorkerStorage.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil
	return nil
}

// FailJob implements WorkerStorage.
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryIn time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	job.RetryCount++
	job.Error = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if retryIn > 0 {
		job.Status = JobStatusPending
		job.ScheduledAt = time.Now().Add(retryIn)
	} else {
		job.Status = JobStatusFailed
	}
	return nil
}

// MoveToDeadLetter implements WorkerStorage.
func (ms *MemoryStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	entry := &DeadJob{
		ID:         uuid.New(),
		JobID:      job.ID,
		Queue:      job.Queue,
		Name:       job.Name,
		Payload:    job.Payload,
		RetryCount: job.RetryCount,
		MaxRetries: job.MaxRetries,
		FailedAt:   time.Now(),
		CreatedAt:  job.CreatedAt,
	}
	if job.Error != nil {
		entry.Error = *job.Error
	}

	ms.dead[entry.ID] = entry
	delete(ms.jobs, jobID)
	return nil
}

// ListDeadJobs implements DeadLetterStorage. Entries are ordered by failure
// time, oldest first.
func (ms *MemoryStorage) ListDeadJobs(ctx context.Context, queue string, limit int) ([]DeadJob, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]DeadJob, 0, len(ms.dead))
	for _, d := range ms.dead {
		if queue != "" && d.Queue != queue {
			continue
		}
		out = append(out, *d)
	}
	sortDeadJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RequeueDeadJob implements DeadLetterStorage. The job returns to its queue
// as pending with a fresh retry budget.
func (ms *MemoryStorage) RequeueDeadJob(ctx context.Context, deadID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	entry, ok := ms.dead[deadID]
	if !ok {
		return ErrJobNotFound
	}

	job := &Job{
		ID:          entry.JobID,
		Queue:       entry.Queue,
		Name:        entry.Name,
		Payload:     entry.Payload,
		Status:      JobStatusPending,
		MaxRetries:  entry.MaxRetries,
		ScheduledAt: time.Now(),
		CreatedAt:   entry.CreatedAt,
	}
	ms.jobs[job.ID] = job
	delete(ms.dead, deadID)
	return nil
}

func (ms *MemoryStorage) reapLoop() {
	for {
		select {
		case <-ms.reaper.C:
			ms.expireLeases()
		case <-ms.done:
			return
		}
	}
}

// expireLeases releases jobs whose lease has run out, preserving their retry
// count. This is the at-least-once path: the original handler may still be
// running when the job becomes claimable again.
func (ms *MemoryStorage) expireLeases() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, job := range ms.jobs {
		if job.Status == JobStatusProcessing && job.LockedUntil != nil && job.LockedUntil.Before(now) {
			job.Status = JobStatusPending
			job.LockedUntil = nil
			job.LockedBy = nil
		}
	}
}
