package readtool

import "context"

type settled[T any] struct {
	value T
	err   error
}

// await runs fn on its own goroutine and settles exactly once: with fn's result, or with
// ctx's error if ctx is done first. fn always runs to completion and its result is
// dropped if ctx finished in the meantime. The channel is buffered so the goroutine can
// always deliver and exit.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	done := make(chan settled[T], 1)
	go func() {
		value, err := fn()
		done <- settled[T]{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-done:
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return res.value, res.err
	}
}

// settle gives ctx the last word on a finished read: once ctx is done, a page and a
// pagination error alike settle as a cancellation.
func settle(ctx context.Context, path string, outcome *Outcome, err error) (*Outcome, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, cancelled(path, ctxErr)
	}
	return outcome, err
}
