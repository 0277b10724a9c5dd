package dispatch

import "slices"

type queued struct {
	task Task
	// priority is the band the task was queued in; a retry sits in the high
	// band whatever its own priority.
	priority Priority
}

// pendingQueue is the ordered sequence of tasks waiting for a worker.
// It is not safe for concurrent use; the manager guards it with its lock.
type pendingQueue struct {
	items []queued
}

func (q *pendingQueue) len() int {
	return len(q.items)
}

// insertAt places t at index i, clamped to the queue bounds.
func (q *pendingQueue) insertAt(i int, t Task, p Priority) {
	i = max(0, min(i, len(q.items)))
	q.items = slices.Insert(q.items, i, queued{task: t, priority: p})
}

// insertSorted puts t before the first entry with strictly lower priority,
// which keeps submission order within a band.
func (q *pendingQueue) insertSorted(t Task, p Priority) {
	i := slices.IndexFunc(q.items, func(e queued) bool { return e.priority < p })
	if i < 0 {
		i = len(q.items)
	}
	q.insertAt(i, t, p)
}

func (q *pendingQueue) removeAt(i int) Task {
	t := q.items[i].task
	q.items = slices.Delete(q.items, i, i+1)
	return t
}

// indexOf returns the first index whose task matches fn, or -1.
func (q *pendingQueue) indexOf(fn func(Task) bool) int {
	return slices.IndexFunc(q.items, func(e queued) bool { return fn(e.task) })
}

func (q *pendingQueue) snapshot() []Task {
	tasks := make([]Task, len(q.items))
	for i, e := range q.items {
		tasks[i] = e.task
	}
	return tasks
}
