package dispatch_test

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

const waitFor = 2 * time.Second

// testTask is a dispatch.Task driven by a closure.
type testTask struct {
	dispatch.BaseTask

	name string
	key  string
	dups bool
	run  func(ctx context.Context) error

	calls atomic.Int32

	mu     sync.Mutex
	ioErrs []error
	rtErrs []error
}

func newTask(name string, p dispatch.Priority, run func(ctx context.Context) error) *testTask {
	t := &testTask{name: name, run: run}
	t.SetPriority(p)
	t.OnIOError = func(err error) {
		t.mu.Lock()
		t.ioErrs = append(t.ioErrs, err)
		t.mu.Unlock()
	}
	t.OnRuntimeError = func(err error) {
		t.mu.Lock()
		t.rtErrs = append(t.rtErrs, err)
		t.mu.Unlock()
	}
	return t
}

func (t *testTask) PerformOperation(ctx context.Context) error {
	t.calls.Add(1)
	if t.run == nil {
		return nil
	}
	return t.run(ctx)
}

// Equal matches tasks sharing a non-empty key, identity otherwise.
func (t *testTask) Equal(other dispatch.Task) bool {
	o, ok := other.(*testTask)
	if !ok {
		return false
	}
	if t.key == "" {
		return o == t
	}
	return o.key == t.key
}

func (t *testTask) SupportsDuplicates() bool {
	return t.dups
}

func (t *testTask) ioErrors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.ioErrs)
}

func (t *testTask) runtimeErrors() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.rtErrs)
}

// recorder collects strings from several goroutines.
type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.items = append(r.items, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// recording returns a task run function that appends name to rec.
func recording(rec *recorder, name string) func(context.Context) error {
	return func(context.Context) error {
		rec.add(name)
		return nil
	}
}

// completions tracks PhaseCompleted events per task.
type completions struct {
	mu       sync.Mutex
	outcomes map[dispatch.Task][]dispatch.Outcome
}

func trackCompletions(m *dispatch.Manager) *completions {
	c := &completions{outcomes: make(map[dispatch.Task][]dispatch.Outcome)}
	m.AddProgressListener(func(ev dispatch.ProgressEvent) {
		if ev.Phase != dispatch.PhaseCompleted {
			return
		}
		c.mu.Lock()
		c.outcomes[ev.Task] = append(c.outcomes[ev.Task], ev.Outcome)
		c.mu.Unlock()
	})
	return c
}

func (c *completions) of(task dispatch.Task) []dispatch.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.outcomes[task])
}

func (c *completions) wait(t *testing.T, task dispatch.Task, n int) []dispatch.Outcome {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.of(task)) >= n }, waitFor, time.Millisecond)
	return c.of(task)
}

func newManager(t *testing.T, opts ...dispatch.Option) *dispatch.Manager {
	t.Helper()
	m := dispatch.New(append([]dispatch.Option{dispatch.WithLogger(logger.Discard())}, opts...)...)
	t.Cleanup(m.Shutdown)
	return m
}

// blocker returns a channel closed by open or at test cleanup, so blocked
// tasks always unwind after the assertions.
func blocker(t *testing.T) (<-chan struct{}, func()) {
	t.Helper()
	release := make(chan struct{})
	var once sync.Once
	open := func() { once.Do(func() { close(release) }) }
	t.Cleanup(open)
	return release, open
}

func names(tasks []dispatch.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.(*testTask).name
	}
	return out
}

func receive(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for signal")
	}
}

type fakeTransport struct {
	native bool

	mu       sync.Mutex
	timeouts []time.Duration
}

func (f *fakeTransport) SupportsTimeout() bool {
	return f.native
}

func (f *fakeTransport) SetTimeout(d time.Duration) {
	f.mu.Lock()
	f.timeouts = append(f.timeouts, d)
	f.mu.Unlock()
}

func (f *fakeTransport) received() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.timeouts)
}

type fakeBridge struct {
	eventLoop bool

	invoked   atomic.Int32
	throttled atomic.Int32
	restored  atomic.Int32
}

func (b *fakeBridge) IsEventLoop() bool {
	return b.eventLoop
}

func (b *fakeBridge) InvokeAndBlock(wait func()) {
	b.invoked.Add(1)
	wait()
}

func (b *fakeBridge) ThrottleRendering() func() {
	b.throttled.Add(1)
	return func() { b.restored.Add(1) }
}
