package dispatch_test

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/netdispatch/pkg/dispatch"
	"github.com/dmitrymomot/netdispatch/pkg/logger"
)

type printTask struct {
	dispatch.BaseTask
	msg string
}

func (t *printTask) PerformOperation(ctx context.Context) error {
	fmt.Println(t.msg)
	return nil
}

func Example() {
	m := dispatch.New(dispatch.WithLogger(logger.Discard()))

	low := &printTask{msg: "low"}
	low.SetPriority(dispatch.PriorityLow)
	high := &printTask{msg: "high"}
	high.SetPriority(dispatch.PriorityHigh)

	// queued before Start, so the single worker sees them in priority order
	_ = m.Submit(low)
	_ = m.Submit(high)
	m.Start()
	defer m.Shutdown()

	last := &printTask{msg: "last"}
	last.SetPriority(dispatch.PriorityRedundant)
	_ = m.SubmitAndWait(context.Background(), last)
	// Output:
	// high
	// low
	// last
}

func ExampleManager_AddErrorListener() {
	m := dispatch.New(dispatch.WithLogger(logger.Discard()))
	m.AddErrorListener(func(ev *dispatch.ErrorEvent) {
		fmt.Println("listener:", ev.Err)
		ev.Consume()
	})
	m.Start()
	defer m.Shutdown()

	task := &failingTask{}
	task.OnIOError = func(err error) { fmt.Println("task handler:", err) }
	_ = m.SubmitAndWait(context.Background(), task)
	// Output:
	// listener: connection refused
}

type failingTask struct {
	dispatch.BaseTask
}

func (t *failingTask) PerformOperation(context.Context) error {
	return fmt.Errorf("connection refused")
}
