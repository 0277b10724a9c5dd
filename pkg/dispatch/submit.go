package dispatch

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

// Submit adds the task to the pending queue. It returns ErrInvalidPriority
// for a priority outside the known tiers.
//
// A task that does not support duplicates is silently dropped when an equal
// task is already pending or is running on the primary worker (index 0).
// Only the primary worker is inspected: an equal task running on another
// worker is not detected.
func (m *Manager) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if err := m.submit(task, false); err != nil && !errors.Is(err, ErrDuplicate) {
		return err
	}
	return nil
}

// SubmitRetry re-submits a task after a failure. Dedup is skipped and the
// task is queued in the high priority band whatever its own priority.
func (m *Manager) SubmitRetry(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	return m.submit(task, true)
}

// submit returns ErrDuplicate when the task was dropped as a duplicate.
func (m *Manager) submit(task Task, retry bool) error {
	priority := task.Priority()
	if retry {
		priority = PriorityHigh
	} else if !priority.Valid() {
		m.metrics.rejected()
		m.logger.Warn("task with unknown priority rejected", slog.Int("priority", int(priority)))
		return ErrInvalidPriority
	}

	if !m.running.Load() {
		m.logger.Warn("dispatch manager is not running, task stays queued until Start",
			taskAttrs(task)...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !retry && !supportsDuplicates(task) && m.duplicateLocked(task) {
		m.metrics.rejected()
		m.logger.Debug("duplicate task dropped", taskAttrs(task)...)
		return ErrDuplicate
	}

	if priority == PriorityCritical {
		m.pending.insertAt(0, task, priority)
		m.preemptPrimaryLocked()
	} else {
		m.pending.insertSorted(task, priority)
	}

	m.metrics.submitted(priority)
	m.metrics.setPending(m.pending.len())
	m.notEmpty.Signal()

	m.logger.Debug("task queued",
		append(taskAttrs(task),
			slog.Bool("retry", retry),
			slog.Int("pending", m.pending.len()))...)
	return nil
}

func (m *Manager) duplicateLocked(task Task) bool {
	if m.pending.indexOf(func(p Task) bool { return sameTask(p, task) }) >= 0 {
		return true
	}
	if len(m.workers) == 0 {
		return false
	}
	current := m.workers[0].current
	return current != nil && sameTask(current, task)
}

// preemptPrimaryLocked makes room for a critical task on the primary worker:
// a pausable task goes back to the queue right behind it, anything else is
// killed.
func (m *Manager) preemptPrimaryLocked() {
	if len(m.workers) == 0 {
		return
	}
	primary := m.workers[0]
	current := primary.current
	if current == nil || primary.preempted || current.Priority() >= PriorityCritical {
		return
	}

	if current.IsPausable() {
		current.Pause()
		primary.preempted = true
		m.pending.insertAt(1, current, current.Priority())
		m.metrics.preempted("paused")
		m.logger.Info("task paused for critical work", taskAttrs(current)...)
	} else {
		current.Kill()
		m.metrics.preempted("killed")
		m.logger.Info("task killed for critical work", taskAttrs(current)...)
	}

	if primary.cancel != nil {
		primary.cancel()
	}
}

func taskID(t Task) string {
	if v, ok := t.(interface{ ID() uuid.UUID }); ok {
		return v.ID().String()
	}
	return ""
}

// taskAttrs returns the log attributes identifying a task.
func taskAttrs(t Task) []any {
	attrs := []any{
		logger.TaskType(t),
		logger.Priority(t.Priority().String()),
	}
	if id := taskID(t); id != "" {
		attrs = append(attrs, logger.TaskID(id))
	}
	if c := t.Category(); c != "" {
		attrs = append(attrs, logger.Category(string(c)))
	}
	return attrs
}
