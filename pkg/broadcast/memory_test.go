package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/netdispatch/pkg/broadcast"
)

func TestMemoryBroadcaster_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("subscribe after close returns closed subscriber", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[string](10)
		require.NoError(t, b.Close())

		sub := b.Subscribe(context.Background())
		_, ok := <-sub.Receive()
		assert.False(t, ok)
	})

	t.Run("context cancellation unsubscribes", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[string](10)
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sub := b.Subscribe(ctx)
		require.Equal(t, 1, b.Len())

		cancel()
		require.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)

		_, ok := <-sub.Receive()
		assert.False(t, ok)
	})

	t.Run("close does not wait for live contexts", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[string](10)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		_ = b.Subscribe(ctx)

		done := make(chan struct{})
		go func() {
			_ = b.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Close blocked on an active subscription context")
		}
	})
}

func TestMemoryBroadcaster_Broadcast(t *testing.T) {
	t.Parallel()

	t.Run("delivers to every subscriber in order", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[int](10)
		defer b.Close()

		ctx := context.Background()
		subs := []broadcast.Subscriber[int]{b.Subscribe(ctx), b.Subscribe(ctx), b.Subscribe(ctx)}

		for i := range 3 {
			require.NoError(t, b.Broadcast(ctx, i))
		}

		for _, sub := range subs {
			for want := range 3 {
				assert.Equal(t, want, <-sub.Receive())
			}
		}
	})

	t.Run("slow subscriber is dropped", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[int](1)
		defer b.Close()

		ctx := context.Background()
		slow := b.Subscribe(ctx)

		require.NoError(t, b.Broadcast(ctx, 1))
		require.NoError(t, b.Broadcast(ctx, 2))
		assert.Equal(t, 0, b.Len())

		got := []int{}
		for v := range slow.Receive() {
			got = append(got, v)
		}
		assert.Equal(t, []int{1}, got)
	})

	t.Run("closed subscriber is removed on next broadcast", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[int](4)
		defer b.Close()

		sub := b.Subscribe(context.Background())
		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		require.NoError(t, b.Broadcast(context.Background(), 1))
		assert.Equal(t, 0, b.Len())
	})

	t.Run("broadcast after close", func(t *testing.T) {
		b := broadcast.NewMemoryBroadcaster[int](4)
		sub := b.Subscribe(context.Background())
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		assert.ErrorIs(t, b.Broadcast(context.Background(), 1), broadcast.ErrClosed)
		_, ok := <-sub.Receive()
		assert.False(t, ok)
	})
}

func TestMemoryBroadcaster_Concurrent(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1000)
	ctx := context.Background()

	const producers, perProducer = 4, 100
	sub := b.Subscribe(ctx)

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = b.Broadcast(ctx, i)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, b.Close())

	n := 0
	for range sub.Receive() {
		n++
	}
	assert.Equal(t, producers*perProducer, n)
}
