// Package dispatch runs outbound network operations on a small fixed pool of
// workers with strict priority ordering, category pinning and a fallback
// timeout watchdog.
//
// The package is organised around a single Manager:
//
//   - Submit / SubmitRetry: admit a Task into the priority queue
//   - SubmitAndWait: submit and block until that task is finished
//   - Kill / KillAndWait: cooperative cancellation of queued or running tasks
//   - Start / Shutdown: worker pool lifecycle (Run adapts it to errgroup)
//
// # Ordering
//
// Pending tasks are kept in non-increasing priority order with FIFO order
// inside a priority band. A critical task always goes to the head of the
// queue; if the primary worker (index 0) is running something less
// important, that task is paused and requeued right behind it when it is
// pausable, and killed otherwise.
//
// Duplicate detection looks at the pending queue and at the primary worker
// only. An equal task running on another worker is not detected.
//
// # Affinity
//
// BindCategory pins a Category to one worker index. Any other worker that
// dequeues a pinned task hands it back at queue position 1 and backs off
// briefly.
//
// # Timeouts
//
// When the configured Transport enforces timeouts itself, the manager only
// forwards SetTimeout to it. Otherwise a watchdog polls the workers every
// Timeout/10 and kills tasks whose TimeSinceLastActivity exceeds the smaller
// of the global and the per-task timeout. A worker that still holds the task
// after the grace period is abandoned and replaced.
//
// # Events
//
// Progress listeners receive initializing and completed events for every
// task plus transfer events reported by transports through ReportProgress.
// Error listeners see every failure first and may Consume it; unconsumed
// failures go to the task's HandleIOError or HandleRuntimeError.
//
// # Usage
//
//	m := dispatch.New(dispatch.WithWorkers(2), dispatch.WithLogger(log))
//	m.Start()
//	defer m.Shutdown()
//
//	if err := m.SubmitAndWait(ctx, task); err != nil {
//		return err
//	}
package dispatch
