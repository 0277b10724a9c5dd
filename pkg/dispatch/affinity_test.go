package dispatch_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
)

func TestBindCategory(t *testing.T) {
	t.Parallel()

	t.Run("pinned tasks run on their worker", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, dispatch.WithWorkers(3))
		m.BindCategory("uploads", 2)
		done := trackCompletions(m)

		var mu sync.Mutex
		seen := map[int]int{}
		tasks := make([]*testTask, 6)
		for i := range tasks {
			tasks[i] = newTask("upload", dispatch.PriorityNormal, func(ctx context.Context) error {
				idx, ok := dispatch.WorkerIndex(ctx)
				assert.True(t, ok)
				mu.Lock()
				seen[idx]++
				mu.Unlock()
				return nil
			})
			tasks[i].SetCategory("uploads")
		}

		m.Start()
		for _, task := range tasks {
			require.NoError(t, m.Submit(task))
		}
		for _, task := range tasks {
			done.wait(t, task, 1)
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, map[int]int{2: 6}, seen)
	})

	t.Run("unbinding frees the category", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, dispatch.WithWorkers(2))
		m.BindCategory("uploads", 1)
		m.BindCategory("uploads", -1)
		release, _ := blocker(t)
		started := make(chan struct{}, 1)

		// occupy worker 1 so the category can only run on worker 0
		blockerTask := newTask("busy", dispatch.PriorityNormal, func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		})
		blockerTask.SetCategory("busy")
		m.BindCategory("busy", 1)

		m.Start()
		require.NoError(t, m.Submit(blockerTask))
		receive(t, started)

		idx := make(chan int, 1)
		task := newTask("upload", dispatch.PriorityNormal, func(ctx context.Context) error {
			i, _ := dispatch.WorkerIndex(ctx)
			idx <- i
			return nil
		})
		task.SetCategory("uploads")
		require.NoError(t, m.SubmitAndWait(context.Background(), task))
		assert.Equal(t, 0, <-idx)
	})

	t.Run("binding outside the pool is ignored", func(t *testing.T) {
		t.Parallel()

		m := newManager(t, dispatch.WithWorkers(2))
		m.BindCategory("uploads", 5)
		m.Start()

		task := newTask("upload", dispatch.PriorityNormal, nil)
		task.SetCategory("uploads")

		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		require.NoError(t, m.SubmitAndWait(ctx, task))
	})
}

func TestSchedulingHint(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	m.Start()

	hints := map[dispatch.Priority]dispatch.Hint{}
	var mu sync.Mutex
	for _, p := range []dispatch.Priority{
		dispatch.PriorityCritical,
		dispatch.PriorityHigh,
		dispatch.PriorityNormal,
		dispatch.PriorityLow,
		dispatch.PriorityRedundant,
	} {
		task := newTask(p.String(), p, func(ctx context.Context) error {
			mu.Lock()
			hints[p] = dispatch.HintFromContext(ctx)
			mu.Unlock()
			return nil
		})
		require.NoError(t, m.SubmitAndWait(context.Background(), task))
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[dispatch.Priority]dispatch.Hint{
		dispatch.PriorityCritical:  dispatch.HintMaximum,
		dispatch.PriorityHigh:      dispatch.HintElevated,
		dispatch.PriorityNormal:    dispatch.HintDefault,
		dispatch.PriorityLow:       dispatch.HintReduced,
		dispatch.PriorityRedundant: dispatch.HintLowest,
	}, hints)

	assert.Equal(t, dispatch.HintDefault, dispatch.HintFromContext(context.Background()))
	assert.Equal(t, dispatch.HintDefault, m.Workers()[0].Hint)
}
