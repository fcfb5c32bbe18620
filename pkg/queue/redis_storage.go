package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the queue storage interfaces on top of Redis.
//
// Layout per queue q (prefix is configurable):
//
//	{prefix}:job:{id}        string  JSON-encoded Job
//	{prefix}:q:{q}:pending   zset    job id scored by ScheduledAt (unix ms)
//	{prefix}:q:{q}:working   zset    job id scored by lease expiry (unix ms)
//	{prefix}:q:{q}:dead      hash    dead-letter id -> JSON-encoded DeadJob
//
// Claiming is atomic: a Lua script first returns expired leases to pending,
// then moves the earliest due pending id into the working set. Only the
// claim needs this exclusivity; the remaining operations act on a job that
// is already leased to the calling worker.
type RedisStorage struct {
	client      redis.UniversalClient
	prefix      string
	keepDone    time.Duration
	claimScript *redis.Script
}

// RedisStorageOption configures a RedisStorage.
type RedisStorageOption func(*RedisStorage)

// WithKeyPrefix overrides the default "taskflow" key prefix.
func WithKeyPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithCompletedRetention sets how long completed job records are kept for
// inspection before Redis expires them.
func WithCompletedRetention(d time.Duration) RedisStorageOption {
	return func(s *RedisStorage) {
		if d > 0 {
			s.keepDone = d
		}
	}
}

// claimLua reclaims expired leases and then claims the earliest due job.
// KEYS[1] = pending zset, KEYS[2] = working zset
// ARGV[1] = now (unix ms), ARGV[2] = lease expiry (unix ms)
const claimLua = `
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #due == 0 then
	return false
end
redis.call('ZREM', KEYS[1], due[1])
redis.call('ZADD', KEYS[2], ARGV[2], due[1])
return due[1]
`

var (
	_ EnqueuerStorage   = (*RedisStorage)(nil)
	_ WorkerStorage     = (*RedisStorage)(nil)
	_ DeadLetterStorage = (*RedisStorage)(nil)
)

// NewRedisStorage creates a Redis-backed queue storage.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrStorageNil
	}

	s := &RedisStorage{
		client:      client,
		prefix:      "taskflow",
		keepDone:    24 * time.Hour,
		claimScript: redis.NewScript(claimLua),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStorage) jobKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, id)
}

func (s *RedisStorage) pendingKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:pending", s.prefix, queue)
}

func (s *RedisStorage) workingKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:working", s.prefix, queue)
}

func (s *RedisStorage) deadKey(queue string) string {
	return fmt.Sprintf("%s:q:%s:dead", s.prefix, queue)
}

// CreateJob implements EnqueuerStorage.
func (s *RedisStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrPayloadNil
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.jobKey(job.ID), raw, 0)
	pipe.ZAdd(ctx, s.pendingKey(job.Queue), redis.Z{
		Score:  float64(job.ScheduledAt.UnixMilli()),
		Member: job.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimJob implements WorkerStorage.
func (s *RedisStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error) {
	now := time.Now()
	until := now.Add(lease)

	for _, queue := range queues {
		res, err := s.claimScript.Run(ctx, s.client,
			[]string{s.pendingKey(queue), s.workingKey(queue)},
			now.UnixMilli(), until.UnixMilli(),
		).Result()
		if errors.Is(err, redis.Nil) || res == nil {
			continue
		}
		if err != nil {
			return nil, errors.Join(ErrQueueUnavailable, err)
		}

		id, err := uuid.Parse(res.(string))
		if err != nil {
			return nil, fmt.Errorf("corrupt job id %q in queue %q: %w", res, queue, err)
		}

		job, err := s.loadJob(ctx, id)
		if err != nil {
			return nil, err
		}

		job.Status = JobStatusProcessing
		job.LockedUntil = &until
		job.LockedBy = &workerID
		if err := s.saveJob(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
	return nil, ErrNoJobToClaim
}

// CompleteJob implements WorkerStorage. The record is kept with a TTL so
// recent history stays inspectable without growing unbounded.
func (s *RedisStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = JobStatusCompleted
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", jobID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.workingKey(job.Queue), jobID.String())
	pipe.Set(ctx, s.jobKey(jobID), raw, s.keepDone)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

// FailJob implements WorkerStorage.
func (s *RedisStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryIn time.Duration) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.RetryCount++
	job.Error = &errMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.workingKey(job.Queue), jobID.String())

	if retryIn > 0 {
		job.Status = JobStatusPending
		job.ScheduledAt = time.Now().Add(retryIn)
		pipe.ZAdd(ctx, s.pendingKey(job.Queue), redis.Z{
			Score:  float64(job.ScheduledAt.UnixMilli()),
			Member: jobID.String(),
		})
	} else {
		job.Status = JobStatusFailed
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", jobID, err)
	}
	pipe.Set(ctx, s.jobKey(jobID), raw, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record failure for job %s: %w", jobID, err)
	}
	return nil
}

// MoveToDeadLetter implements WorkerStorage.
func (s *RedisStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	entry := DeadJob{
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

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode dead-letter entry for job %s: %w", jobID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.deadKey(job.Queue), entry.ID.String(), raw)
	pipe.ZRem(ctx, s.workingKey(job.Queue), jobID.String())
	pipe.ZRem(ctx, s.pendingKey(job.Queue), jobID.String())
	pipe.Del(ctx, s.jobKey(jobID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to dead-letter job %s: %w", jobID, err)
	}
	return nil
}

// ListDeadJobs implements DeadLetterStorage.
func (s *RedisStorage) ListDeadJobs(ctx context.Context, queue string, limit int) ([]DeadJob, error) {
	entries, err := s.client.HGetAll(ctx, s.deadKey(queue)).Result()
	if err != nil {
		return nil, errors.Join(ErrQueueUnavailable, err)
	}

	out := make([]DeadJob, 0, len(entries))
	for _, raw := range entries {
		var d DeadJob
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("corrupt dead-letter entry in queue %q: %w", queue, err)
		}
		out = append(out, d)
	}
	sortDeadJobs(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RequeueDeadJob implements DeadLetterStorage. Since dead entries are
// partitioned per queue, every queue hash is checked for the id.
func (s *RedisStorage) RequeueDeadJob(ctx context.Context, deadID uuid.UUID) error {
	pattern := fmt.Sprintf("%s:q:*:dead", s.prefix)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.HGet(ctx, key, deadID.String()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return errors.Join(ErrQueueUnavailable, err)
		}

		var entry DeadJob
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return fmt.Errorf("corrupt dead-letter entry %s: %w", deadID, err)
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
		if err := s.CreateJob(ctx, job); err != nil {
			return err
		}
		if err := s.client.HDel(ctx, key, deadID.String()).Err(); err != nil {
			return errors.Join(ErrQueueUnavailable, err)
		}
		return nil
	}
	if err := iter.Err(); err != nil {
		return errors.Join(ErrQueueUnavailable, err)
	}
	return ErrJobNotFound
}

func (s *RedisStorage) loadJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	raw, err := s.client.Get(ctx, s.jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrQueueUnavailable, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("corrupt job record %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStorage) saveJob(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, s.jobKey(job.ID), raw, 0).Err(); err != nil {
		return errors.Join(ErrQueueUnavailable, err)
	}
	return nil
}
