package pubsub

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHub_SubscribeDeliversCurrent(t *testing.T) {
	t.Parallel()
	var h Hub[int]
	var got []int
	unsub := h.Subscribe(func(v int) { got = append(got, v) }, func() int { return 7 })
	require.Equal(t, []int{7}, got)

	h.Publish(func() int { return 8 })
	require.Equal(t, []int{7, 8}, got)

	unsub()
	unsub()
	h.Publish(func() int { return 9 })
	require.Equal(t, []int{7, 8}, got)
	require.Zero(t, h.Len())
}

func TestHub_NoListenersSkipsSnapshot(t *testing.T) {
	t.Parallel()
	var h Hub[int]
	h.Publish(func() int {
		t.Fatalf("snapshot taken without listeners")
		return 0
	})
}

func TestHub_OrderedUnderConcurrency(t *testing.T) {
	t.Parallel()
	var h Hub[int64]
	var counter atomic.Int64

	var mu sync.Mutex
	var seen []int64
	h.Subscribe(func(v int64) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	}, counter.Load)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.Add(1)
			h.Publish(counter.Load)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 51)
	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1], "snapshots went backwards: %v", seen)
	}
	require.Equal(t, int64(50), seen[len(seen)-1])
}
