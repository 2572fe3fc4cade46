package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacegun/internal/clock"
)

func TestCache_MemoizesUntilExpiry(t *testing.T) {
	mockClock := clock.NewMock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	c := New[int]("test", time.Minute, mockClock)

	calls := 0
	compute := func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	}

	v, err := c.Get(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	mockClock.Advance(30 * time.Second)
	v, err = c.Get(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "value should still be cached")

	mockClock.Advance(31 * time.Second)
	v, err = c.Get(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "value should be recomputed after the TTL")
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := New[string]("test", time.Minute, nil)

	_, err := c.Get(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "", errors.New("unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get(context.Background(), "k", func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_ZeroTTLDisablesCaching(t *testing.T) {
	c := New[int]("test", 0, nil)

	calls := 0
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[int]("test", time.Hour, nil)
	compute := func(v int) func(ctx context.Context) (int, error) {
		return func(ctx context.Context) (int, error) { return v, nil }
	}

	_, _ = c.Get(context.Background(), "a", compute(1))
	_, _ = c.Get(context.Background(), "b", compute(2))
	assert.Equal(t, 2, c.Len())

	c.Invalidate("a")
	v, _ := c.Get(context.Background(), "a", compute(3))
	assert.Equal(t, 3, v)

	v, _ = c.Get(context.Background(), "b", compute(4))
	assert.Equal(t, 2, v)
}

func TestCache_ConcurrentMissesShareComputation(t *testing.T) {
	c := New[int]("test", time.Hour, nil)

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k", compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give the goroutines a chance to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}
