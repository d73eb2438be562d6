package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunPoolProcessesEverything(t *testing.T) {
	t.Parallel()

	ids := make([]int64, 100)
	for i := range ids {
		ids[i] = int64(i)
	}
	var mu sync.Mutex
	seen := make(map[int64]bool)

	err := runPool(context.Background(), 8, ids, func(_ context.Context, id int64) error {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 100)
}

func TestRunPoolFirstErrorStopsFeeding(t *testing.T) {
	t.Parallel()

	ids := make([]int64, 1000)
	for i := range ids {
		ids[i] = int64(i)
	}
	boom := errors.New("boom")
	var processed atomic.Int64

	err := runPool(context.Background(), 2, ids, func(_ context.Context, id int64) error {
		processed.Add(1)
		if id == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Less(t, processed.Load(), int64(1000))
}

func TestRunPoolEmptyInput(t *testing.T) {
	t.Parallel()

	err := runPool(context.Background(), 4, nil, func(_ context.Context, _ int64) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.NoError(t, err)
}

func TestRunPoolHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runPool(ctx, 4, []int64{1, 2, 3}, func(ctx context.Context, _ int64) error {
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNestedPoolSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, nestedPoolSize(1))
	require.Equal(t, 1, nestedPoolSize(2))
	require.Equal(t, 2, nestedPoolSize(4))
	require.Equal(t, 5, nestedPoolSize(10))
	require.Equal(t, 5, nestedPoolSize(64))
}
