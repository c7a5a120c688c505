package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBoundsConcurrency(t *testing.T) {
	t.Parallel()

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	var inFlight, peak atomic.Int32
	err := Run(context.Background(), 3, items, func(_ context.Context, _ int) error {
		cur := inFlight.Add(1)
		for {
			prev := peak.Load()
			if cur <= prev || peak.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}, nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestRunIsolatesFailuresAndPanics(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		failed = map[int]string{}
		done   atomic.Int32
	)

	err := Run(context.Background(), 2, []int{1, 2, 3, 4}, func(_ context.Context, n int) error {
		switch n {
		case 2:
			return errors.New("boom")
		case 3:
			panic("kaboom")
		}
		done.Add(1)
		return nil
	}, func(n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed[n] = err.Error()
	})

	require.NoError(t, err)
	assert.Equal(t, int32(2), done.Load())
	assert.Equal(t, "boom", failed[2])
	assert.Contains(t, failed[3], "kaboom")
}

func TestRunStopsSubmittingAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := Run(ctx, 2, []int{1, 2, 3}, func(context.Context, int) error {
		calls.Add(1)
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Zero(t, calls.Load())
}
