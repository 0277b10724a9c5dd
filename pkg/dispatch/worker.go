package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

// worker is one slot of the pool. Every field is guarded by Manager.mu.
type worker struct {
	index      int
	generation int
	state      WorkerState

	current Task
	cancel  context.CancelFunc
	hint    Hint

	// preempted is set when a critical submission paused the current task
	// and put it back in the queue.
	preempted bool
	// abandoned is set by the watchdog when it replaced this worker.
	abandoned bool
}

func (m *Manager) spawnWorkerLocked(index, generation int) *worker {
	w := &worker{
		index:      index,
		generation: generation,
		state:      WorkerIdle,
	}
	m.wg.Add(1)
	go m.runWorker(w)
	return w
}

// runWorker is the main loop of a worker goroutine
func (m *Manager) runWorker(w *worker) {
	defer m.workerExited(w)

	for {
		task, ok := m.next(w)
		if !ok {
			return
		}
		if task == nil {
			continue
		}

		m.applyDefaultHeaders(task)

		if m.handOver(w, task) {
			m.yield()
			continue
		}

		m.execute(w, task)
	}
}

func (m *Manager) workerExited(w *worker) {
	m.mu.Lock()
	abandoned := w.abandoned
	m.mu.Unlock()

	// the watchdog already released the wait group slot of an abandoned worker
	if !abandoned {
		m.wg.Done()
	}
	m.logger.Debug("worker exited",
		logger.WorkerIndex(w.index),
		slog.Int("generation", w.generation),
		slog.Bool("abandoned", abandoned))
}

// next blocks until a task can be taken from the queue and makes it the
// worker's current task. It returns false when the worker must exit and a
// nil task when the popped task was discarded.
func (m *Manager) next(w *worker) (Task, bool) {
	m.mu.Lock()

	var i int
	for {
		if !m.running.Load() || w.abandoned {
			m.mu.Unlock()
			return nil, false
		}
		// re-checked under the lock after every wake
		i = m.pending.indexOf(func(t Task) bool { return !m.heldLocked(t) })
		if i >= 0 {
			break
		}
		w.state = WorkerIdle
		m.notEmpty.Wait()
	}

	task := m.pending.removeAt(i)
	m.metrics.setPending(m.pending.len())
	w.current = task
	w.state = WorkerPreparing
	task.Prepare()

	if !task.IsKilled() {
		m.mu.Unlock()
		return task, true
	}

	w.current = nil
	w.preempted = false
	w.state = WorkerIdle
	m.releaseLocked()
	m.mu.Unlock()

	m.logger.Debug("killed task discarded", taskAttrs(task)...)
	m.metrics.executed(task.Priority(), OutcomeDiscarded, 0)
	m.publishProgress(ProgressEvent{
		Task:        task,
		Phase:       PhaseCompleted,
		WorkerIndex: w.index,
		Length:      -1,
		Outcome:     OutcomeDiscarded,
	})
	return nil, true
}

// handOver puts a task pinned to another worker back in the queue. It goes
// to position 1 so a critical task at the head keeps its place.
func (m *Manager) handOver(w *worker, task Task) bool {
	bound, ok := m.boundWorker(task.Category())
	if !ok || bound == w.index {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if bound >= len(m.workers) {
		return false
	}

	w.current = nil
	w.state = WorkerIdle
	if w.preempted {
		// a critical submission already requeued it behind itself
		w.preempted = false
	} else {
		m.pending.insertAt(1, task, task.Priority())
		m.metrics.setPending(m.pending.len())
	}
	m.metrics.handedOver()
	// broadcast: the bound worker may be any of the sleepers
	m.releaseLocked()
	return true
}

// yield pauses the worker briefly instead of spinning on a pinned task.
func (m *Manager) yield() {
	select {
	case <-m.clock.After(m.affinityBackoff):
	case <-m.ctx.Done():
	}
}

// execute runs a prepared task and publishes its lifecycle events.
func (m *Manager) execute(w *worker, task Task) {
	start := m.clock.Now()
	priority := task.Priority()
	hint := HintFor(priority)

	ctx, cancel := context.WithCancel(context.Background())
	ctx = context.WithValue(ctx, hintKey, hint)
	ctx = context.WithValue(ctx, execKey, &execution{manager: m, task: task, worker: w.index})

	m.mu.Lock()
	w.cancel = cancel
	w.hint = hint
	w.state = WorkerRunning
	// a kill or preemption that raced with Prepare
	if task.IsKilled() || w.preempted {
		cancel()
	}
	m.mu.Unlock()
	m.metrics.busy(1)

	var restore func()
	if priority == PriorityCritical && m.bridge != nil {
		restore = m.bridge.ThrottleRendering()
	}

	outcome := m.perform(ctx, w, task)
	cancel()

	if restore != nil {
		m.safely("rendering restore", restore)
	}

	m.mu.Lock()
	if w.preempted && outcome != OutcomePaused {
		// finished before it noticed the pause: drop the requeued copy
		if i := m.pending.indexOf(func(t Task) bool { return t == task }); i >= 0 {
			m.pending.removeAt(i)
			m.metrics.setPending(m.pending.len())
		}
	}
	w.preempted = false
	w.hint = HintDefault
	w.state = WorkerFinishing
	m.mu.Unlock()

	duration := m.clock.Since(start)
	m.metrics.busy(-1)
	m.metrics.executed(priority, outcome, duration)

	if outcome != OutcomePaused {
		m.publishProgress(ProgressEvent{
			Task:        task,
			Phase:       PhaseCompleted,
			WorkerIndex: w.index,
			Length:      -1,
			Outcome:     outcome,
		})
	}

	if modal, ok := task.(Modal); ok {
		m.dispose(modal)
	}

	m.mu.Lock()
	w.current = nil
	w.cancel = nil
	w.state = WorkerIdle
	m.releaseLocked()
	m.mu.Unlock()

	m.logger.Debug("task finished",
		append(taskAttrs(task),
			logger.WorkerIndex(w.index),
			logger.Outcome(string(outcome)),
			logger.Duration(duration))...)
}

// perform calls the task and routes failures. Panics are recovered and
// reported through the runtime failure channel.
func (m *Manager) perform(ctx context.Context, w *worker, task Task) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = m.fail(w, task, &PanicError{Value: r, Stack: debug.Stack()}, true)
		}
	}()

	m.publishProgress(ProgressEvent{
		Task:        task,
		Phase:       PhaseInitializing,
		WorkerIndex: w.index,
		Length:      -1,
	})

	if modal, ok := task.(Modal); ok {
		modal.ShowModeless()
	}

	if err := task.PerformOperation(ctx); err != nil {
		return m.fail(w, task, err, false)
	}
	if task.IsKilled() {
		return OutcomeKilled
	}
	return OutcomeCompleted
}

// fail offers err to the error listeners, then to the task's own handler.
func (m *Manager) fail(w *worker, task Task, err error, runtime bool) Outcome {
	m.mu.Lock()
	preempted := w.preempted
	m.mu.Unlock()

	if preempted {
		m.logger.Debug("paused task stopped", append(taskAttrs(task), logger.Error(err))...)
		return OutcomePaused
	}
	if task.IsKilled() {
		m.logger.Debug("killed task stopped", append(taskAttrs(task), logger.Error(err))...)
		return OutcomeKilled
	}

	attrs := append(taskAttrs(task), logger.WorkerIndex(w.index), logger.Error(err))
	if runtime {
		m.logger.Error("task panicked", attrs...)
	} else {
		m.logger.Warn("task failed", attrs...)
	}

	ev := &ErrorEvent{Task: task, Err: err, Runtime: runtime}
	if m.publishError(ev) {
		return OutcomeFailed
	}

	if runtime {
		m.safely("runtime error handler", func() { task.HandleRuntimeError(err) })
	} else {
		m.safely("io error handler", func() { task.HandleIOError(err) })
	}
	return OutcomeFailed
}

// dispose waits, bounded by the dispose timeout, for the modal surface to
// become current and then disposes it.
func (m *Manager) dispose(modal Modal) {
	if ready := modal.Ready(); ready != nil {
		timer := m.clock.NewTimer(m.disposeTimeout)
		select {
		case <-ready:
		case <-timer.Chan():
			m.logger.Warn("modal surface not ready before dispose timeout",
				slog.Duration("timeout", m.disposeTimeout))
		}
		timer.Stop()
	}
	m.safely("modal dispose", modal.Dispose)
}
