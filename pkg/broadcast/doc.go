// Package broadcast fans typed values out to any number of subscribers.
//
//	b := broadcast.NewMemoryBroadcaster[dispatch.ProgressEvent](64)
//	defer b.Close()
//
//	sub := b.Subscribe(ctx)
//	go func() {
//		for ev := range sub.Receive() {
//			render(ev)
//		}
//	}()
//
//	_ = b.Broadcast(ctx, ev)
//
// Broadcast never waits for a subscriber. A subscriber whose buffer is full
// is dropped and its channel closed, so a stalled consumer cannot hold up
// the producer. Subscriptions also end when their context is done or when
// the broadcaster is closed.
package broadcast
