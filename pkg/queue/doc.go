// Package queue provides a storage-agnostic durable job queue with
// at-least-once delivery, per-delivery exclusive leases, bounded exponential
// retry backoff, and a dead-letter queue for exhausted or permanently failed
// jobs.
//
// The package is organised around two components:
//
//   - Enqueuer: durably stores named jobs and returns immediately
//   - Worker: claims due jobs and dispatches them to registered Handlers
//
// Producer and worker interact only through the storage interfaces
// (EnqueuerStorage, WorkerStorage, DeadLetterStorage), so they can live in
// separate processes. Two storages are bundled: RedisStorage for production
// and MemoryStorage for tests and local development.
//
// # Failure semantics
//
// A handler signals the outcome of a delivery through its return value:
//
//   - nil: success, the job is acknowledged
//   - error: retryable failure, rescheduled with backoff
//   - queue.Permanent(error): permanent failure, dead-lettered immediately
//
// Jobs that exhaust MaxRetries are also dead-lettered. Dead-letter entries
// are never auto-retried; they remain listable via DeadLetterStorage and can
// be replayed manually with RequeueDeadJob. A job whose name has no
// registered handler is logged and acknowledged as a no-op.
//
// # Delivery guarantees
//
// Delivery is at-least-once. A claimed job is invisible to other workers for
// the lease duration; if the lease expires before acknowledgement (worker
// crash, hung handler) the job becomes claimable again, so handlers must
// tolerate duplicates. There is no ordering guarantee across jobs.
//
// # Usage
//
//	enq, _ := queue.NewEnqueuer(storage, queue.WithDefaultQueue("task"))
//	jobID, err := enq.Enqueue(ctx, "task.created", payload)
//
//	w, _ := queue.NewWorker(storage,
//	    queue.WithQueues("task"),
//	    queue.WithConcurrency(10),
//	)
//	w.RegisterHandler(queue.NewHandler("task.created", handleTaskCreated))
//	_ = w.Start(ctx)
package queue
