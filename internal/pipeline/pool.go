package pipeline

import (
	"context"
	"sync"
)

// runPool calls fn for every index in [0, n) on at most workers goroutines.
// The first error cancels the context seen by jobs that have not started
// and is returned once every running job has finished.
func runPool(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	sem := make(chan struct{}, workers)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}: // acquire
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }() // release

			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, idx); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
