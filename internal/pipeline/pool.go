package pipeline

import (
	"context"
	"sync"
)

// runPool fans items out over a fixed number of workers. The first error
// cancels the derived context and stops feeding; stages that must not abort
// on unit failures swallow them inside fn instead.
func runPool[T any](parent context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return parent.Err()
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	jobs := make(chan T)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range jobs {
				if err := fn(ctx, item); err != nil {
					fail(err)
					return
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case jobs <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	return parent.Err()
}

// nestedPoolSize sizes the inner download pool so one spec's frames never
// monopolize the run's worker budget.
func nestedPoolSize(workers int) int {
	size := workers / 2
	if size > 5 {
		size = 5
	}
	if size < 1 {
		size = 1
	}
	return size
}
