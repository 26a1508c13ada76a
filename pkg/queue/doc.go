// Package queue is a storage-agnostic background task queue.
//
// Enqueuer stores one-time tasks, Scheduler keeps a pending task for each
// periodic payload, and Worker claims due tasks and dispatches them to
// handlers. Tasks are named after their payload type in both cases.
// They communicate only through the repository interfaces, implemented by
// MemoryStorage for tests and PGStorage for production.
//
// Failures are classified by the handler's error:
//
//   - nil completes the task;
//   - an error wrapped with Permanent discards the task without retry;
//   - anything else is retried with RetryPolicy backoff until MaxRetries
//     attempts were made, then moved to the dead letter queue.
//
// Payloads that no longer decode are treated as permanent failures.
//
//	enq, _ := queue.NewEnqueuer(storage)
//	id, err := enq.Enqueue(ctx, jobs.SendInvitation{MembershipID: m.ID})
package queue
