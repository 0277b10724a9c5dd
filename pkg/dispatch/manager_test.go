package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
)

func TestManager_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start is idempotent", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, dispatch.WithWorkers(3))
		assert.False(t, m.Running())
		assert.Empty(t, m.Workers())

		m.Start()
		m.Start()
		assert.True(t, m.Running())
		assert.Len(t, m.Workers(), 3)

		m.Shutdown()
		assert.False(t, m.Running())

		m.Start()
		assert.False(t, m.Running())
	})

	t.Run("worker count before start", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)
		m.SetWorkerCount(4)
		m.SetWorkerCount(0)
		assert.Equal(t, 4, m.WorkerCount())

		m.Start()
		workers := m.Workers()
		require.Len(t, workers, 4)
		for i, w := range workers {
			assert.Equal(t, i, w.Index)
			assert.Equal(t, 0, w.Generation)
		}

		m.SetWorkerCount(2)
		assert.Len(t, m.Workers(), 4)
	})

	t.Run("run with errgroup", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, dispatch.WithWorkers(2))
		ctx, cancel := context.WithCancel(context.Background())

		g, gctx := errgroup.WithContext(ctx)
		g.Go(m.Run(gctx))

		require.Eventually(t, m.Running, waitFor, time.Millisecond)
		require.NoError(t, m.SubmitAndWait(ctx, newTask("A", dispatch.PriorityNormal, nil)))

		cancel()
		require.NoError(t, g.Wait())
		assert.False(t, m.Running())
	})

	t.Run("shutdown leaves queued tasks", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)
		m.Start()
		m.Shutdown()

		require.NoError(t, m.Submit(newTask("late", dispatch.PriorityNormal, nil)))
		assert.Len(t, m.SnapshotPending(), 1)
	})
}

func TestDefaultHeaders(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	m.AddDefaultHeader("User-Agent", "netdispatch")
	m.AddDefaultHeader("Accept", "application/json")
	m.Start()

	first := newTask("first", dispatch.PriorityNormal, nil)
	first.SetHeader("Accept", "text/plain")
	require.NoError(t, m.SubmitAndWait(context.Background(), first))
	assert.Equal(t, map[string]string{
		"User-Agent": "netdispatch",
		"Accept":     "text/plain",
	}, first.Headers())

	m.AddDefaultHeader("X-Client", "cli")
	second := newTask("second", dispatch.PriorityNormal, nil)
	require.NoError(t, m.SubmitAndWait(context.Background(), second))
	assert.Equal(t, map[string]string{
		"User-Agent": "netdispatch",
		"Accept":     "application/json",
		"X-Client":   "cli",
	}, second.Headers())
}

func TestRenderingThrottle(t *testing.T) {
	t.Parallel()

	bridge := &fakeBridge{}
	m := newManager(t, dispatch.WithBridge(bridge))
	m.Start()

	require.NoError(t, m.SubmitAndWait(context.Background(), newTask("normal", dispatch.PriorityHigh, nil)))
	assert.Zero(t, bridge.throttled.Load())

	require.NoError(t, m.SubmitAndWait(context.Background(), newTask("critical", dispatch.PriorityCritical, nil)))
	assert.Equal(t, int32(1), bridge.throttled.Load())
	assert.Equal(t, int32(1), bridge.restored.Load())
}

type modalTask struct {
	*testTask
	ready  chan struct{}
	events *recorder
}

func (t *modalTask) ShowModeless()          { t.events.add("show") }
func (t *modalTask) Ready() <-chan struct{} { return t.ready }
func (t *modalTask) Dispose()               { t.events.add("dispose") }

func TestModalTask(t *testing.T) {
	t.Parallel()

	t.Run("shown before and disposed after the operation", func(t *testing.T) {
		t.Parallel()

		m := newManager(t)
		m.Start()

		rec := &recorder{}
		ready := make(chan struct{})
		close(ready)
		task := &modalTask{
			testTask: newTask("modal", dispatch.PriorityNormal, recording(rec, "perform")),
			ready:    ready,
			events:   rec,
		}
		require.NoError(t, m.SubmitAndWait(context.Background(), task))
		require.Eventually(t, func() bool { return len(rec.list()) == 3 }, waitFor, time.Millisecond)
		assert.Equal(t, []string{"show", "perform", "dispose"}, rec.list())
	})

	t.Run("disposed after the timeout when never ready", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, dispatch.WithDisposeTimeout(20*time.Millisecond))
		m.Start()

		rec := &recorder{}
		task := &modalTask{
			testTask: newTask("modal", dispatch.PriorityNormal, nil),
			ready:    make(chan struct{}),
			events:   rec,
		}
		require.NoError(t, m.SubmitAndWait(context.Background(), task))
		require.Eventually(t, func() bool { return len(rec.list()) == 2 }, waitFor, time.Millisecond)
		assert.Equal(t, []string{"show", "dispose"}, rec.list())
	})
}

func TestConfig(t *testing.T) {
	t.Parallel()

	m := newManager(t, dispatch.WithConfig(dispatch.Config{
		Workers: 2,
		Timeout: time.Minute,
	}))
	assert.Equal(t, 2, m.WorkerCount())
	assert.Equal(t, time.Minute, m.Timeout())

	d := newManager(t, dispatch.WithConfig(dispatch.Config{}))
	assert.Equal(t, dispatch.DefaultConfig().Workers, d.WorkerCount())
	assert.Equal(t, dispatch.DefaultConfig().Timeout, d.Timeout())
}
