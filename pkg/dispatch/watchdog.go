package dispatch

import (
	"log/slog"
	"slices"
	"time"

	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

// watchdog polls the workers for stalled operations. It only runs when the
// transport has no timeout of its own.
func (m *Manager) watchdog() {
	defer m.wg.Done()

	for {
		interval := max(m.Timeout()/10, time.Millisecond)
		select {
		case <-m.ctx.Done():
			return
		case <-m.clock.After(interval):
		}
		m.checkStalled()
	}
}

// effectiveTimeout picks the smaller of the global and the per-task timeout.
func effectiveTimeout(global, override time.Duration) time.Duration {
	if override > 0 && override < global {
		return override
	}
	return global
}

// checkStalled kills every task silent for longer than its timeout and
// replaces the worker of a task that does not let go within the grace period.
func (m *Manager) checkStalled() {
	m.mu.Lock()
	workers := slices.Clone(m.workers)
	m.mu.Unlock()

	global := m.Timeout()
	for _, w := range workers {
		m.mu.Lock()
		task, cancel := w.current, w.cancel
		m.mu.Unlock()
		if task == nil {
			continue
		}

		limit := effectiveTimeout(global, task.Timeout())
		if task.TimeSinceLastActivity() <= limit {
			continue
		}

		m.logger.Warn("task timed out, killing it",
			append(taskAttrs(task),
				logger.WorkerIndex(w.index),
				slog.Duration("timeout", limit))...)
		m.metrics.timedOut()

		task.Kill()
		if cancel != nil {
			cancel()
		}

		if m.waitReleased(m.ctx, task, m.gracePeriod) {
			continue
		}
		if task.TimeSinceLastActivity() <= limit {
			continue
		}
		m.replaceWorker(w, task)
	}
}

// replaceWorker abandons a worker stuck on task and starts a new one at the
// same index. The abandoned goroutine exits once its operation returns.
func (m *Manager) replaceWorker(stuck *worker, task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.Load() || stuck.abandoned || stuck.current != task {
		return
	}
	if stuck.index >= len(m.workers) || m.workers[stuck.index] != stuck {
		return
	}

	stuck.abandoned = true
	stuck.state = WorkerAbandoned
	m.wg.Done()

	replacement := m.spawnWorkerLocked(stuck.index, stuck.generation+1)
	m.workers[stuck.index] = replacement
	m.metrics.replaced()
	// the task no longer counts as held; wake anyone waiting on it
	m.releaseLocked()

	m.logger.Error("worker abandoned after unresponsive task, replacement started",
		append(taskAttrs(task),
			logger.WorkerIndex(stuck.index),
			slog.Int("generation", replacement.generation))...)
}
