package reply

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

type callResult struct {
	body []byte
	err  error
}

// pool runs blocking provider calls on at most size goroutines at a time.
type pool struct {
	sem *semaphore.Weighted
}

func newPool(size int) *pool {
	return &pool{sem: semaphore.NewWeighted(int64(size))}
}

// do waits for a free worker, runs fn on it and waits for the result. Both
// waits end when ctx is done; fn keeps its worker until it returns.
func (p *pool) do(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("sem.Acquire failed: %w", err)
	}

	done := make(chan callResult, 1)
	go func() {
		defer p.sem.Release(1)

		body, err := fn(ctx)
		done <- callResult{body: body, err: err}
	}()

	select {
	case r := <-done:
		return r.body, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
