package dispatch

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dmitrymomot/netdispatch/pkg/broadcast"
	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

// ProgressEvent reports a lifecycle step or transfer progress of a task.
type ProgressEvent struct {
	Task        Task
	Phase       Phase
	WorkerIndex int
	// Length is the expected byte count, -1 when unknown.
	Length int64
	// Transferred is the number of bytes sent or received so far.
	Transferred int64
	// Outcome is set on PhaseCompleted events only.
	Outcome Outcome
}

// ErrorEvent is offered to error listeners before the task's own handler.
type ErrorEvent struct {
	Task Task
	Err  error
	// Runtime is true for recovered panics.
	Runtime  bool
	consumed bool
}

// Consume stops propagation to later listeners and to the task's handler.
func (e *ErrorEvent) Consume() {
	e.consumed = true
}

func (e *ErrorEvent) Consumed() bool {
	return e.consumed
}

type (
	ProgressListener func(ProgressEvent)
	ErrorListener    func(*ErrorEvent)

	// ListenerID identifies a registration for removal.
	ListenerID uint64
)

type listenerEntry[F any] struct {
	id ListenerID
	fn F
}

// listenerSet is an ordered registry of callbacks; fire paths iterate a copy.
type listenerSet[F any] struct {
	mu      sync.RWMutex
	next    ListenerID
	entries []listenerEntry[F]
}

func (s *listenerSet[F]) add(fn F) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries = append(s.entries, listenerEntry[F]{id: s.next, fn: fn})
	return s.next
}

func (s *listenerSet[F]) remove(id ListenerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e listenerEntry[F]) bool { return e.id == id })
	return len(s.entries) != n
}

func (s *listenerSet[F]) snapshot() []F {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fns := make([]F, len(s.entries))
	for i, e := range s.entries {
		fns[i] = e.fn
	}
	return fns
}

// AddErrorListener registers a callback invoked synchronously, in
// registration order, for every failure of a task.
func (m *Manager) AddErrorListener(fn ErrorListener) ListenerID {
	return m.errorListeners.add(fn)
}

// RemoveErrorListener reports whether the listener was registered.
func (m *Manager) RemoveErrorListener(id ListenerID) bool {
	return m.errorListeners.remove(id)
}

// AddProgressListener registers a callback for progress events. Listeners
// run on the worker goroutine and must not block.
func (m *Manager) AddProgressListener(fn ProgressListener) ListenerID {
	return m.progressListeners.add(fn)
}

// RemoveProgressListener reports whether the listener was registered.
func (m *Manager) RemoveProgressListener(id ListenerID) bool {
	return m.progressListeners.remove(id)
}

// SubscribeProgress returns a buffered stream of progress events that ends
// when ctx is done or the manager shuts down. Slow subscribers are dropped.
func (m *Manager) SubscribeProgress(ctx context.Context) broadcast.Subscriber[ProgressEvent] {
	return m.stream.Subscribe(ctx)
}

func (m *Manager) publishProgress(ev ProgressEvent) {
	for _, fn := range m.progressListeners.snapshot() {
		m.safely("progress listener", func() { fn(ev) })
	}
	_ = m.stream.Broadcast(context.Background(), ev)
}

// publishError reports whether a listener consumed the event.
func (m *Manager) publishError(ev *ErrorEvent) bool {
	for _, fn := range m.errorListeners.snapshot() {
		m.safely("error listener", func() { fn(ev) })
		if ev.Consumed() {
			return true
		}
	}
	return false
}

// safely runs fn and logs a panic instead of letting it unwind the worker.
func (m *Manager) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("recovered panic",
				slog.String("in", what),
				slog.Any("panic", r))
		}
	}()
	fn()
}

type ctxKey int

const (
	hintKey ctxKey = iota
	execKey
)

// execution links an operation context back to its manager and worker.
type execution struct {
	manager *Manager
	task    Task
	worker  int
}

// HintFromContext returns the scheduling hint of the running task.
func HintFromContext(ctx context.Context) Hint {
	if h, ok := ctx.Value(hintKey).(Hint); ok {
		return h
	}
	return HintDefault
}

// WorkerIndex returns the index of the worker running the operation.
func WorkerIndex(ctx context.Context) (int, bool) {
	if ex, ok := ctx.Value(execKey).(*execution); ok {
		return ex.worker, true
	}
	return 0, false
}

// ReportProgress publishes transfer progress for the task running under ctx
// and records activity for the watchdog. It is a no-op outside a worker.
func ReportProgress(ctx context.Context, phase Phase, length, transferred int64) {
	ex, ok := ctx.Value(execKey).(*execution)
	if !ok {
		return
	}
	if t, ok := ex.task.(Toucher); ok {
		t.Touch()
	}
	if phase == PhaseCompleted || phase == PhaseInitializing {
		ex.manager.logger.Debug("lifecycle phase reported by transport ignored",
			logger.Phase(string(phase)))
		return
	}
	ex.manager.publishProgress(ProgressEvent{
		Task:        ex.task,
		Phase:       phase,
		WorkerIndex: ex.worker,
		Length:      length,
		Transferred: transferred,
	})
}

// Touch records activity for the task running under ctx.
func Touch(ctx context.Context) {
	if ex, ok := ctx.Value(execKey).(*execution); ok {
		if t, ok := ex.task.(Toucher); ok {
			t.Touch()
		}
	}
}

// LoggerExtractor adds the worker index to records logged with the context
// of a running operation.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if i, ok := WorkerIndex(ctx); ok {
			return logger.WorkerIndex(i), true
		}
		return slog.Attr{}, false
	}
}
