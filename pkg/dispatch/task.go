package dispatch

import (
	"context"
	"time"
)

// Task is a unit of outbound network work executed by a Manager worker.
//
// Implementations are expected to be pointer types: the manager compares
// tasks by identity when they do not implement Equaler. Embed *BaseTask or
// BaseTask to get every method except PerformOperation.
type Task interface {
	Priority() Priority
	Category() Category

	// Prepare is called by the worker right after the task is dequeued,
	// while the queue lock is held. It must be cheap.
	Prepare()

	// PerformOperation runs the operation. The context is cancelled when the
	// task is killed, preempted or timed out. An operation that stops early
	// must return a non-nil error (ctx.Err() is fine).
	PerformOperation(ctx context.Context) error

	Kill()
	IsKilled() bool

	IsPausable() bool
	Pause()

	// TimeSinceLastActivity reports how long the operation has been silent.
	TimeSinceLastActivity() time.Duration
	// Timeout overrides the global timeout when positive.
	Timeout() time.Duration

	// HandleIOError receives errors returned by PerformOperation that no
	// error listener consumed.
	HandleIOError(err error)
	// HandleRuntimeError receives recovered panics (as *PanicError) that no
	// error listener consumed.
	HandleRuntimeError(err error)
}

// Equaler gives a task a dedup identity other than pointer equality.
type Equaler interface {
	Equal(other Task) bool
	SupportsDuplicates() bool
}

// HeaderSetter receives the manager's default headers before execution.
// Implementations must never overwrite a value the task set itself.
type HeaderSetter interface {
	AddHeaderIfAbsent(key, value string)
}

// Toucher records transport activity for the watchdog.
type Toucher interface {
	Touch()
}

// Modal is implemented by tasks that own a UI surface shown while they run.
// The worker calls ShowModeless before the operation and, once the task is
// finished, waits for Ready (bounded by the dispose timeout) before Dispose.
type Modal interface {
	ShowModeless()
	Ready() <-chan struct{}
	Dispose()
}

// Transport describes the connection layer behind the tasks.
// When it enforces timeouts natively the manager does not run its watchdog.
type Transport interface {
	SupportsTimeout() bool
	SetTimeout(d time.Duration)
}

// Bridge connects the manager to an external UI event loop.
type Bridge interface {
	// IsEventLoop reports whether the caller runs on the event loop.
	IsEventLoop() bool
	// InvokeAndBlock runs wait while keeping the event loop pumping.
	InvokeAndBlock(wait func())
	// ThrottleRendering slows unrelated rendering while a critical task runs.
	// The returned function restores the previous rate.
	ThrottleRendering() (restore func())
}

func sameTask(existing, candidate Task) bool {
	if eq, ok := candidate.(Equaler); ok {
		return eq.Equal(existing)
	}
	return existing == candidate
}

func supportsDuplicates(t Task) bool {
	if eq, ok := t.(Equaler); ok {
		return eq.SupportsDuplicates()
	}
	return false
}
