package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskflow/pkg/queue"
)

// MockWorkerStorage is a mock implementation of WorkerStorage.
type MockWorkerStorage struct {
	mock.Mock
}

func (m *MockWorkerStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*queue.Job, error) {
	args := m.Called(ctx, workerID, queues, lease)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Job), args.Error(1)
}

func (m *MockWorkerStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockWorkerStorage) FailJob(ctx context.Context, jobID uuid.UUID, errMsg string, retryIn time.Duration) error {
	args := m.Called(ctx, jobID, errMsg, retryIn)
	return args.Error(0)
}

func (m *MockWorkerStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingJob(name string, payload string, retryCount, maxRetries int) *queue.Job {
	return &queue.Job{
		ID:          uuid.New(),
		Queue:       queue.DefaultQueueName,
		Name:        name,
		Payload:     []byte(payload),
		Status:      queue.JobStatusProcessing,
		RetryCount:  retryCount,
		MaxRetries:  maxRetries,
		ScheduledAt: time.Now(),
		CreatedAt:   time.Now(),
	}
}

// runWorker starts the worker with a fast poll interval and stops it once
// done is signalled or the timeout elapses.
func runWorker(t *testing.T, w *queue.Worker, done <-chan struct{}) {
	t.Helper()

	require.NoError(t, w.Start(context.Background()))
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for worker to process job")
	}
	require.NoError(t, w.Stop())
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("nil storage", func(t *testing.T) {
		t.Parallel()

		w, err := queue.NewWorker(nil)
		assert.ErrorIs(t, err, queue.ErrStorageNil)
		assert.Nil(t, w)
	})

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		w, err := queue.NewWorker(storage)
		require.NoError(t, err)

		assert.ErrorIs(t, w.Start(context.Background()), queue.ErrNoHandlers)
	})
}

func TestWorker_ProcessJob(t *testing.T) {
	t.Parallel()

	t.Run("success acknowledges the job", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.created", `{"user_id":"u1"}`, 0, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, []string{queue.DefaultQueueName}, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		storage.On("CompleteJob", mock.Anything, job.ID).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		var seen testEvent
		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			seen = p
			return nil
		}))

		runWorker(t, w, done)

		assert.Equal(t, "u1", seen.UserID)
		storage.AssertExpectations(t)
	})

	t.Run("retryable failure reschedules with backoff", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.created", `{"user_id":"u1"}`, 1, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		// Second attempt failing: backoff doubles from the base.
		storage.On("FailJob", mock.Anything, job.ID, "downstream unavailable", 2*time.Second).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithRetryBackoff(time.Second, time.Minute),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			return errors.New("downstream unavailable")
		}))

		runWorker(t, w, done)

		storage.AssertNotCalled(t, "MoveToDeadLetter", mock.Anything, mock.Anything)
		storage.AssertExpectations(t)
	})

	t.Run("exhausted retries dead-letter the job", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.created", `{"user_id":"u1"}`, 3, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		storage.On("FailJob", mock.Anything, job.ID, "still failing", time.Duration(0)).
			Return(nil).Once()
		storage.On("MoveToDeadLetter", mock.Anything, job.ID).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			return errors.New("still failing")
		}))

		runWorker(t, w, done)
		storage.AssertExpectations(t)
	})

	t.Run("permanent failure dead-letters without retry", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.created", `{"user_id":"u1"}`, 0, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		storage.On("FailJob", mock.Anything, job.ID, mock.AnythingOfType("string"), time.Duration(0)).
			Return(nil).Once()
		storage.On("MoveToDeadLetter", mock.Anything, job.ID).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			return queue.Permanent(errors.New("unrecoverable"))
		}))

		runWorker(t, w, done)
		storage.AssertExpectations(t)
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.created", `{not-json`, 0, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		storage.On("FailJob", mock.Anything, job.ID, mock.AnythingOfType("string"), time.Duration(0)).
			Return(nil).Once()
		storage.On("MoveToDeadLetter", mock.Anything, job.ID).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		handlerCalled := false
		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			handlerCalled = true
			return nil
		}))

		runWorker(t, w, done)

		assert.False(t, handlerCalled)
		storage.AssertExpectations(t)
	})

	t.Run("unknown job name is acknowledged as a no-op", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.archived", `{}`, 0, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		storage.On("CompleteJob", mock.Anything, job.ID).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			return nil
		}))

		runWorker(t, w, done)

		storage.AssertNotCalled(t, "FailJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		storage.AssertNotCalled(t, "MoveToDeadLetter", mock.Anything, mock.Anything)
		storage.AssertExpectations(t)
	})

	t.Run("panicking handler fails the job", func(t *testing.T) {
		t.Parallel()

		storage := new(MockWorkerStorage)
		job := pendingJob("task.created", `{"user_id":"u1"}`, 0, 3)
		done := make(chan struct{})

		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(job, nil).Once()
		storage.On("ClaimJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, queue.ErrNoJobToClaim).Maybe()
		storage.On("FailJob", mock.Anything, job.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Duration")).
			Run(func(mock.Arguments) { close(done) }).
			Return(nil).Once()

		w, err := queue.NewWorker(storage,
			queue.WithPollInterval(10*time.Millisecond),
			queue.WithWorkerLogger(discardLogger()),
		)
		require.NoError(t, err)

		w.RegisterHandler(queue.NewHandler("task.created", func(ctx context.Context, p testEvent) error {
			panic("boom")
		}))

		runWorker(t, w, done)
		storage.AssertExpectations(t)
	})
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	base := errors.New("bad payload")
	wrapped := queue.Permanent(base)

	assert.True(t, queue.IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, queue.IsPermanent(base))
	assert.Nil(t, queue.Permanent(nil))
}
