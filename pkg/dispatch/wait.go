package dispatch

import (
	"context"
	"sync"
)

// SubmitAndWait submits the task and blocks until that exact task reaches a
// terminal state. When called on the bridge's event loop the wait goes
// through Bridge.InvokeAndBlock so the loop keeps running.
func (m *Manager) SubmitAndWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if _, ok := WorkerIndex(ctx); ok {
		return ErrCalledFromWorker
	}

	done := make(chan struct{})
	var once sync.Once
	id := m.AddProgressListener(func(ev ProgressEvent) {
		if ev.Task == task && ev.Phase == PhaseCompleted {
			once.Do(func() { close(done) })
		}
	})
	defer m.RemoveProgressListener(id)

	if err := m.submit(task, false); err != nil {
		return err
	}

	wait := func() {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	if m.bridge != nil && m.bridge.IsEventLoop() {
		m.bridge.InvokeAndBlock(wait)
	} else {
		wait()
	}

	select {
	case <-done:
		return nil
	default:
		return ctx.Err()
	}
}

// Kill sets the kill flag of the task and cancels its operation if a worker
// is running it. A pending killed task is discarded when dequeued.
func (m *Manager) Kill(task Task) {
	if task == nil {
		return
	}
	task.Kill()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workers {
		if w.current == task && w.cancel != nil {
			w.cancel()
		}
	}
}

// KillAndWait kills the task and blocks until no worker runs it anymore.
// It must not be called from inside a task: it returns ErrCalledFromWorker
// when ctx belongs to a running operation.
func (m *Manager) KillAndWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if _, ok := WorkerIndex(ctx); ok {
		return ErrCalledFromWorker
	}

	m.Kill(task)
	if m.waitReleased(ctx, task, 0) {
		return nil
	}
	return ctx.Err()
}
