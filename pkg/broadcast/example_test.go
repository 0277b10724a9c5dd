package broadcast_test

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/netdispatch/pkg/broadcast"
)

func ExampleMemoryBroadcaster() {
	b := broadcast.NewMemoryBroadcaster[string](8)

	ctx := context.Background()
	sub := b.Subscribe(ctx)

	_ = b.Broadcast(ctx, "sending")
	_ = b.Broadcast(ctx, "receiving")
	_ = b.Close()

	for phase := range sub.Receive() {
		fmt.Println(phase)
	}
	// Output:
	// sending
	// receiving
}
